// Package submit validates and sends outgoing chat messages.
//
// A submission never touches the local message list: the sent message comes
// back through the live channel like any other.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyMessage is the validation error for blank input.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrBusy is returned while a previous submission is still in flight.
	ErrBusy = errors.New("a message is already being sent")
)

const (
	textEmpty  = "Message cannot be empty!"
	textFailed = "Something Went Wrong!"
)

// SubmitError wraps every failed submission, validation failures included.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit message: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

type Notice struct {
	Level Level
	Title string
	Text  string
	At    time.Time
}

type Submitter struct {
	poster   Poster
	notifier Notifier
	log      zerolog.Logger

	sending atomic.Bool

	mu        sync.Mutex
	listeners []func(sending bool)
}

func New(poster Poster, notifier Notifier, log zerolog.Logger) *Submitter {
	return &Submitter{
		poster:   poster,
		notifier: notifier,
		log:      log.With().Str("component", "submit").Logger(),
	}
}

// OnSendingChange registers fn to be told when the sending state flips.
func (s *Submitter) OnSendingChange(fn func(sending bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Sending reports whether a write is in flight.
func (s *Submitter) Sending() bool {
	return s.sending.Load()
}

// Submit runs the whole flow: Prepare, then Send.
func (s *Submitter) Submit(ctx context.Context, in Input) error {
	body, err := s.Prepare(in)
	if err != nil {
		return err
	}
	return s.Send(ctx, body)
}

// Prepare trims and validates the input. On success it clears the input and
// enters the sending state; the caller must follow up with Send.
func (s *Submitter) Prepare(in Input) (string, error) {
	body := strings.TrimSpace(in.Value())
	if body == "" {
		s.notify(LevelError, textEmpty)
		return "", &SubmitError{Err: ErrEmptyMessage}
	}
	if !s.sending.CompareAndSwap(false, true) {
		return "", &SubmitError{Err: ErrBusy}
	}
	in.Reset()
	s.emit(true)
	return body, nil
}

// Send issues the remote write for a prepared body and always leaves the
// sending state when the call settles.
func (s *Submitter) Send(ctx context.Context, body string) error {
	defer func() {
		s.sending.Store(false)
		s.emit(false)
	}()

	if err := s.poster.PostMessage(ctx, body); err != nil {
		s.log.Error().Err(err).Msg("send failed")
		s.notify(LevelError, textFailed)
		return &SubmitError{Err: err}
	}
	s.log.Debug().Int("length", len(body)).Msg("message sent")
	return nil
}

func (s *Submitter) notify(level Level, text string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Notice{Level: level, Title: "Error!", Text: text, At: time.Now()})
}

func (s *Submitter) emit(sending bool) {
	s.mu.Lock()
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(sending)
	}
}

// Text is a plain Input backed by a string.
type Text struct {
	value string
}

func NewText(s string) *Text { return &Text{value: s} }

func (t *Text) Value() string { return t.value }

func (t *Text) Reset() { t.value = "" }
