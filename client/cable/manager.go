// Package cable owns the live channel connection: it dials the WebSocket,
// registers the subscription on every open, and hands inbound frames to the
// registered handlers in arrival order.
package cable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatroom/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrAlreadyConnected = errors.New("cable: already connected")

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

type Config struct {
	URL     string
	Channel string

	Reconnect bool
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// StaleTimeout closes a connection that received nothing for this long.
	// Zero disables the check.
	StaleTimeout time.Duration
	WriteTimeout time.Duration

	Dialer *websocket.Dialer
}

type Manager struct {
	cfg     Config
	log     zerolog.Logger
	dialer  *websocket.Dialer
	backoff Backoff

	mu             sync.Mutex
	conn           *websocket.Conn
	status         Status
	cancel         context.CancelFunc
	done           chan struct{}
	frameHandlers  []func(model.Frame)
	statusHandlers []func(Status)
}

func New(cfg Config, log zerolog.Logger) *Manager {
	if cfg.Channel == "" {
		cfg.Channel = model.DefaultChannel
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Manager{
		cfg:     cfg,
		log:     log.With().Str("component", "cable").Logger(),
		dialer:  dialer,
		backoff: Backoff{Base: cfg.BaseDelay, Max: cfg.MaxDelay},
	}
}

// OnFrame registers a handler for every decoded inbound frame. Handlers run
// on the connection's read goroutine, one frame at a time.
func (m *Manager) OnFrame(fn func(model.Frame)) {
	m.mu.Lock()
	m.frameHandlers = append(m.frameHandlers, fn)
	m.mu.Unlock()
}

// OnStatus registers a handler for connection status changes.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	m.statusHandlers = append(m.statusHandlers, fn)
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect opens the channel and starts reading. When reconnecting is
// disabled a failed first dial is returned; otherwise it is retried in the
// background.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.done != nil {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.setStatus(StatusConnecting)
	conn, err := m.open(ctx)
	if err != nil && !m.cfg.Reconnect {
		cancel()
		m.reset(done)
		m.setStatus(StatusDisconnected)
		close(done)
		return err
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("connect failed, retrying")
	}
	go m.run(ctx, cancel, conn, done)
	return nil
}

// Disconnect closes the channel and waits for the read goroutine to exit.
// It is safe to call more than once.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	cancel, done, conn := m.cancel, m.done, m.conn
	m.mu.Unlock()
	if done == nil {
		return nil
	}

	var err error
	if conn != nil {
		err = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
	}
	cancel()
	<-done
	m.reset(done)
	m.log.Info().Msg("disconnected from live channel")
	return err
}

func (m *Manager) reset(done chan struct{}) {
	m.mu.Lock()
	if m.done == done {
		m.done = nil
		m.cancel = nil
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *Manager) open(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}

	cmd, err := model.Subscribe(m.cfg.Channel)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := conn.WriteJSON(cmd); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", m.cfg.Channel, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.log.Info().Str("url", m.cfg.URL).Str("channel", m.cfg.Channel).Msg("connected to live channel")
	return conn, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, done chan struct{}) {
	defer func() {
		cancel()
		m.reset(done)
		m.setStatus(StatusDisconnected)
		close(done)
	}()

	attempt := 0
	for {
		if conn != nil {
			m.setStatus(StatusConnected)
			attempt = 0
			err := m.read(ctx, conn)
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Msg("live channel dropped")
			if !m.cfg.Reconnect {
				return
			}
		}

		m.setStatus(StatusReconnecting)
		delay := m.backoff.Delay(attempt)
		attempt++
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		c, err := m.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("reconnect failed")
			conn = nil
			continue
		}
		conn = c
	}
}

func (m *Manager) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		if m.cfg.StaleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(m.cfg.StaleTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f model.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			m.log.Debug().Err(err).Int("size", len(data)).Msg("malformed frame dropped")
			continue
		}
		switch f.Type {
		case model.FrameTypeRejectSubscription:
			m.log.Warn().Str("identifier", f.Identifier).Msg("subscription rejected")
		case model.FrameTypeDisconnect:
			m.log.Info().Str("reason", f.Reason).Msg("server requested disconnect")
		}
		m.dispatch(f)
	}
}

func (m *Manager) dispatch(f model.Frame) {
	m.mu.Lock()
	handlers := append([]func(model.Frame){}, m.frameHandlers...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(f)
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	handlers := append([]func(Status){}, m.statusHandlers...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(s)
	}
}
