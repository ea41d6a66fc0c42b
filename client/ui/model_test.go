package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatroom/client/cable"
	"chatroom/client/store"
	"chatroom/client/submit"
	"chatroom/mocks"
	"chatroom/model"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type harness struct {
	fetcher *mocks.MockFetcher
	poster  *mocks.MockPoster
	events  *Events
	store   *store.Store
	model   Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		fetcher: mocks.NewMockFetcher(ctrl),
		poster:  mocks.NewMockPoster(ctrl),
		events:  NewEvents(),
	}
	t.Cleanup(h.events.Close)
	h.store = store.New(h.fetcher, zerolog.Nop())
	sub := submit.New(h.poster, h.events, zerolog.Nop())
	h.model = New(Options{
		Store:          h.store,
		Submitter:      sub,
		Events:         h.events,
		Status:         cable.StatusConnecting,
		NoticeDuration: time.Millisecond,
		Log:            zerolog.Nop(),
	})
	h.update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// nextNotice pulls events until a notice arrives.
func (h *harness) nextNotice(t *testing.T) noticeMsg {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-h.events.ch:
			if n, ok := msg.(noticeMsg); ok {
				return n
			}
		case <-deadline:
			t.Fatal("no notice received")
		}
	}
}

func TestModel_InitialLoad(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	h.fetcher.EXPECT().FetchMessages(gomock.Any()).Return([]model.Message{
		{ID: "1", Body: "first message", CreatedAt: created},
	}, nil)

	h.update(h.model.loadCmd()())

	view := h.model.View()
	req.Contains(view, "Chatroom")
	req.Contains(view, "first message")
	req.Contains(view, "Mar 1 2024")
	req.NotContains(view, textEmpty)
}

func TestModel_StatusTexts(t *testing.T) {
	tests := []struct {
		name  string
		state store.State
		want  string
	}{
		{"loading", store.State{Loading: true}, textLoading},
		{"error", store.State{Err: errors.New("boom")}, textFetchError},
		{"error wins over messages", store.State{
			Err:      errors.New("boom"),
			Messages: []model.Message{{ID: "1", Body: "hidden"}},
		}, textFetchError},
		{"empty", store.State{Messages: []model.Message{}}, textEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.update(stateMsg(tt.state))
			view := h.model.View()
			require.Contains(t, view, tt.want)
			require.NotContains(t, view, "hidden")
		})
	}
}

func TestModel_LoadFailureShowsError(t *testing.T) {
	h := newHarness(t)
	h.fetcher.EXPECT().FetchMessages(gomock.Any()).Return(nil, errors.New("down"))

	h.update(h.model.loadCmd()())
	require.Contains(t, h.model.View(), textFetchError)
}

func TestModel_SubmitClearsInputAndSends(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.poster.EXPECT().PostMessage(gomock.Any(), "hello").Return(nil)

	h.model.input.SetValue("  hello  ")
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEnter})
	req.NotNil(cmd)
	req.Empty(h.model.input.Value())
	req.True(h.model.sending)
	req.Contains(h.model.View(), textSending)

	req.Nil(h.update(tea.KeyMsg{Type: tea.KeyEnter}), "second enter while sending")

	h.update(cmd())
	req.False(h.model.sending)
	req.NotContains(h.model.View(), textSending)
}

func TestModel_SubmitEmptyShowsNotice(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	h.model.input.SetValue("   ")
	req.Nil(h.update(tea.KeyMsg{Type: tea.KeyEnter}))

	n := h.nextNotice(t)
	req.Equal("Message cannot be empty!", n.Text)

	cmd := h.update(n)
	req.NotNil(cmd)
	req.Contains(h.model.View(), "Message cannot be empty!")

	h.update(dismissMsg{id: h.model.lastID})
	req.NotContains(h.model.View(), "Message cannot be empty!")
}

func TestModel_SubmitFailureShowsNotice(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.poster.EXPECT().PostMessage(gomock.Any(), "hi").Return(errors.New("503"))

	h.model.input.SetValue("hi")
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	req.Error(msg.(sentMsg).err)
	h.update(msg)

	req.Equal("Something Went Wrong!", h.nextNotice(t).Text)
	req.False(h.model.sending)
}

func TestModel_ConnectionStatus(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.model.View(), "connecting")
	h.update(statusMsg(cable.StatusConnected))
	require.Contains(t, h.model.View(), "connected")
	require.NotContains(t, h.model.View(), "connecting")
}

func TestModel_QuitCancelsContext(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEsc})
	req.IsType(tea.QuitMsg{}, cmd())
	req.ErrorIs(h.model.ctx.Err(), context.Canceled)

	// listeners never block once the program is gone
	for range 300 {
		h.events.StatusChanged(cable.StatusReconnecting)
	}
}
