// Package store holds the ordered list of chat messages for a session.
// The list is seeded by one bulk fetch and then only grows, one message per
// data frame received on the live channel.
package store

import (
	"context"
	"fmt"
	"sync"

	"chatroom/model"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// FetchError records a failed bulk fetch.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load messages: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Status int

const (
	StatusReady Status = iota
	StatusEmpty
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "ready"
	}
}

// State is a snapshot of the store. Loading and Err are never set together.
type State struct {
	Messages []model.Message
	Loading  bool
	Err      error
}

// Status resolves the snapshot in presentation order: error, loading, empty, ready.
func (s State) Status() Status {
	switch {
	case s.Err != nil:
		return StatusError
	case s.Loading:
		return StatusLoading
	case len(s.Messages) == 0:
		return StatusEmpty
	default:
		return StatusReady
	}
}

type Store struct {
	fetcher Fetcher
	log     zerolog.Logger

	// notifyMu orders snapshot and dispatch so the last delivered state is
	// the current one.
	notifyMu sync.Mutex

	mu       sync.RWMutex
	messages []model.Message
	loading  bool
	err      error
	// messages appended while a bulk fetch is in flight
	pending  []model.Message
	watchers []func(State)
}

func New(fetcher Fetcher, log zerolog.Logger) *Store {
	return &Store{
		fetcher:  fetcher,
		log:      log.With().Str("component", "store").Logger(),
		messages: []model.Message{},
	}
}

// Watch registers fn to be called with a fresh snapshot after every change.
// fn runs on the goroutine that made the change, one call at a time, and must
// not call back into the store.
func (s *Store) Watch(fn func(State)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// LoadInitial replaces the message list with the service's history.
// On failure the list is left as is and the error is kept in the state.
func (s *Store) LoadInitial(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.pending = nil
	s.mu.Unlock()
	s.notify()

	messages, err := s.fetcher.FetchMessages(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		fetchErr := &FetchError{Err: err}
		s.err = fetchErr
		s.pending = nil
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("initial load failed")
		s.notify()
		return fetchErr
	}
	seen := lo.SliceToMap(messages, func(m model.Message) (model.MessageID, struct{}) {
		return m.ID, struct{}{}
	})
	live := lo.Filter(s.pending, func(m model.Message, _ int) bool {
		_, dup := seen[m.ID]
		return !dup
	})
	s.messages = append(append(make([]model.Message, 0, len(messages)+len(live)), messages...), live...)
	s.pending = nil
	count := len(s.messages)
	s.mu.Unlock()

	s.log.Debug().Int("count", count).Int("live", len(live)).Msg("initial load done")
	s.notify()
	return nil
}

// OnSubscriptionEvent handles one inbound frame. Control frames and frames
// without a message are dropped; data frames append their message.
func (s *Store) OnSubscriptionEvent(f model.Frame) {
	if f.IsControl() {
		return
	}
	m, err := f.Payload()
	if err != nil {
		s.log.Debug().Err(err).Str("type", f.Type).Msg("frame dropped")
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, m)
	if s.loading {
		s.pending = append(s.pending, m)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) snapshot() State {
	messages := make([]model.Message, len(s.messages))
	copy(messages, s.messages)
	return State{
		Messages: messages,
		Loading:  s.loading,
		Err:      s.err,
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.RLock()
	if len(s.watchers) == 0 {
		s.mu.RUnlock()
		return
	}
	st := s.snapshot()
	watchers := append([]func(State){}, s.watchers...)
	s.mu.RUnlock()
	for _, fn := range watchers {
		fn(st)
	}
}
