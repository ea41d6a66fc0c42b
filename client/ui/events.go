package ui

import (
	"sync"

	"chatroom/client/cable"
	"chatroom/client/store"
	"chatroom/client/submit"

	tea "github.com/charmbracelet/bubbletea"
)

type stateMsg store.State

type statusMsg cable.Status

type sendingMsg bool

type noticeMsg submit.Notice

// Events carries store, connection and submission changes into the program.
// Its methods are safe to call from any goroutine and match the callback
// signatures of Store.Watch, Manager.OnStatus and Submitter.OnSendingChange.
// Events also implements submit.Notifier.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewEvents() *Events {
	return &Events{
		ch:   make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
}

func (e *Events) StoreChanged(st store.State) { e.send(stateMsg(st)) }

func (e *Events) StatusChanged(s cable.Status) { e.send(statusMsg(s)) }

func (e *Events) SendingChanged(sending bool) { e.send(sendingMsg(sending)) }

func (e *Events) Notify(n submit.Notice) { e.send(noticeMsg(n)) }

// Close releases any sender still blocked on a program that has exited.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// wait delivers the next event; Update re-arms it after each one.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}
