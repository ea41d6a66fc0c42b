package load

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chatroom/client/cable"
	"chatroom/client/submit"

	"github.com/rs/zerolog"
)

type Result struct {
	Sent     int64
	Failed   int64
	Duration time.Duration
}

// Throughput is the successful submissions per second.
func (r Result) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Sent) / r.Duration.Seconds()
}

// Pool posts every body read from its input with a fixed number of workers,
// retrying failed writes with exponential backoff.
type Pool struct {
	Workers    int
	MaxRetries int
	Backoff    cable.Backoff

	input  <-chan string
	poster submit.Poster
	log    zerolog.Logger

	sent   atomic.Int64
	failed atomic.Int64
}

func NewPool(workers int, input <-chan string, poster submit.Poster, log zerolog.Logger) *Pool {
	return &Pool{
		Workers:    workers,
		MaxRetries: 5,
		Backoff:    cable.Backoff{Base: 100 * time.Millisecond, Max: 5 * time.Second},
		input:      input,
		poster:     poster,
		log:        log.With().Str("component", "load").Logger(),
	}
}

// Run blocks until the input is drained or ctx ends.
func (p *Pool) Run(ctx context.Context) Result {
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go p.work(ctx, i, &wg)
	}
	wg.Wait()
	return Result{
		Sent:     p.sent.Load(),
		Failed:   p.failed.Load(),
		Duration: time.Since(start),
	}
}

func (p *Pool) work(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-p.input:
			if !ok {
				return
			}
			if p.sendWithRetry(ctx, id, body) {
				p.sent.Add(1)
			} else {
				p.failed.Add(1)
			}
		}
	}
}

func (p *Pool) sendWithRetry(ctx context.Context, id int, body string) bool {
	for i := 0; i <= p.MaxRetries; i++ {
		err := p.poster.PostMessage(ctx, body)
		if err == nil {
			return true
		}
		p.log.Debug().Err(err).Int("worker", id).Int("attempt", i+1).Msg("send failed")
		if i == p.MaxRetries {
			break
		}
		timer := time.NewTimer(p.Backoff.Delay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	return false
}
