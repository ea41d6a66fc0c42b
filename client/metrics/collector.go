package metrics

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"chatroom/client/cable"
	"chatroom/client/submit"
	"chatroom/model"

	"github.com/rs/zerolog"
)

// Record kinds.
const (
	KindSubmit    = "submit"
	KindFrame     = "frame"
	KindReconnect = "reconnect"
)

// Record statuses.
const (
	StatusOK      = "OK"
	StatusError   = "ERROR"
	StatusControl = "CONTROL"
	StatusData    = "DATA"
)

type Record struct {
	Timestamp time.Time
	Kind      string
	Latency   int64 // milliseconds
	Status    string
}

type Statistics struct {
	SubmitCount   int
	SubmitFailed  int
	ControlFrames int
	DataFrames    int
	Reconnects    int
	TotalLatency  int64
	MinLatency    int64
	MaxLatency    int64
	StartTime     time.Time
	EndTime       time.Time

	Latencies []int64
}

// Collector aggregates session events on its own goroutine. Records are
// optionally appended to a CSV file.
type Collector struct {
	records   chan Record
	Done      chan struct{}
	csvFile   *os.File
	csvWriter *csv.Writer

	intake sync.RWMutex
	closed bool

	mu    sync.Mutex
	stats Statistics
}

// NewCollector creates a collector. An empty filePath disables the CSV file.
func NewCollector(filePath string) (*Collector, error) {
	c := &Collector{
		records: make(chan Record, 1024),
		Done:    make(chan struct{}),
		stats: Statistics{
			MinLatency: 1<<63 - 1,
			Latencies:  make([]int64, 0),
		},
	}
	if filePath == "" {
		return c, nil
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	c.csvFile = file
	c.csvWriter = csv.NewWriter(file)
	if err := c.csvWriter.Write([]string{"timestamp", "kind", "latency_ms", "status"}); err != nil {
		_ = file.Close()
		return nil, err
	}
	c.csvWriter.Flush()
	return c, nil
}

// Record queues r; it drops the record rather than block the caller, and
// after Close.
func (c *Collector) Record(r Record) {
	c.intake.RLock()
	defer c.intake.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.records <- r:
	default:
	}
}

func (c *Collector) Start() {
	c.mu.Lock()
	c.stats.StartTime = time.Now()
	c.mu.Unlock()
	go func() {
		for r := range c.records {
			c.apply(r)
			if c.csvWriter != nil {
				_ = c.csvWriter.Write([]string{
					r.Timestamp.Format(time.RFC3339),
					r.Kind,
					strconv.FormatInt(r.Latency, 10),
					r.Status,
				})
			}
		}
		if c.csvWriter != nil {
			c.csvWriter.Flush()
			_ = c.csvFile.Close()
		}
		c.mu.Lock()
		c.stats.EndTime = time.Now()
		c.mu.Unlock()
		close(c.Done)
	}()
}

func (c *Collector) apply(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch r.Kind {
	case KindReconnect:
		c.stats.Reconnects++
	case KindFrame:
		if r.Status == StatusControl {
			c.stats.ControlFrames++
		} else {
			c.stats.DataFrames++
		}
	case KindSubmit:
		c.stats.SubmitCount++
		if r.Status != StatusOK {
			c.stats.SubmitFailed++
			return
		}
		c.stats.TotalLatency += r.Latency
		if r.Latency < c.stats.MinLatency {
			c.stats.MinLatency = r.Latency
		}
		if r.Latency > c.stats.MaxLatency {
			c.stats.MaxLatency = r.Latency
		}
		c.stats.Latencies = append(c.stats.Latencies, r.Latency)
	}
}

// RecordFrame counts one inbound frame. It matches cable.Manager.OnFrame.
func (c *Collector) RecordFrame(f model.Frame) {
	status := StatusData
	if f.IsControl() {
		status = StatusControl
	}
	c.Record(Record{Timestamp: time.Now(), Kind: KindFrame, Status: status})
}

// RecordStatus counts reconnect attempts. It matches cable.Manager.OnStatus.
func (c *Collector) RecordStatus(s cable.Status) {
	if s == cable.StatusReconnecting {
		c.Record(Record{Timestamp: time.Now(), Kind: KindReconnect})
	}
}

// Close stops intake; wait on Done for the final statistics.
func (c *Collector) Close() {
	c.intake.Lock()
	defer c.intake.Unlock()
	if !c.closed {
		c.closed = true
		close(c.records)
	}
}

// Stats returns a copy of the current statistics.
func (c *Collector) Stats() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Latencies = append([]int64(nil), c.stats.Latencies...)
	return s
}

func (c *Collector) CalculatePercentiles() (median, p95, p99 int64) {
	latencies := c.Stats().Latencies
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	n := len(latencies)
	median = latencies[n/2]
	p95 = latencies[int(float64(n)*0.95)]
	p99 = latencies[int(float64(n)*0.99)]
	return
}

// LogSummary writes the session statistics as one structured log event.
func (c *Collector) LogSummary(log zerolog.Logger) {
	s := c.Stats()
	median, p95, p99 := c.CalculatePercentiles()
	ev := log.Info().
		Dur("duration", s.EndTime.Sub(s.StartTime)).
		Int("submitted", s.SubmitCount).
		Int("submit_failed", s.SubmitFailed).
		Int("data_frames", s.DataFrames).
		Int("control_frames", s.ControlFrames).
		Int("reconnects", s.Reconnects)
	if ok := s.SubmitCount - s.SubmitFailed; ok > 0 {
		ev = ev.
			Str("avg_latency", fmt.Sprintf("%.2fms", float64(s.TotalLatency)/float64(ok))).
			Int64("min_latency_ms", s.MinLatency).
			Int64("max_latency_ms", s.MaxLatency).
			Int64("median_latency_ms", median).
			Int64("p95_latency_ms", p95).
			Int64("p99_latency_ms", p99)
	}
	ev.Msg("session summary")
}

type instrumentedPoster struct {
	next      submit.Poster
	collector *Collector
}

// InstrumentPoster times every write made through p.
func InstrumentPoster(p submit.Poster, c *Collector) submit.Poster {
	return &instrumentedPoster{next: p, collector: c}
}

func (p *instrumentedPoster) PostMessage(ctx context.Context, body string) error {
	start := time.Now()
	err := p.next.PostMessage(ctx, body)
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	p.collector.Record(Record{
		Timestamp: start,
		Kind:      KindSubmit,
		Latency:   time.Since(start).Milliseconds(),
		Status:    status,
	})
	return err
}
