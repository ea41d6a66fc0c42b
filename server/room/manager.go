package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subscriber is one live connection's outbound queue.
type Subscriber struct {
	ID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewSubscriber(buffer int) *Subscriber {
	return &Subscriber{
		ID:   uuid.NewString(),
		send: make(chan []byte, buffer),
	}
}

// Messages is drained by the connection's writer. It is closed when the
// subscriber is dropped.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Deliver queues b without blocking and reports whether it was accepted.
func (s *Subscriber) Deliver(b []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- b:
		return true
	default:
		return false
	}
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Room fans broadcast frames out to the subscribers of one channel.
type Room struct {
	ID          string
	subscribers map[*Subscriber]bool
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan []byte
	stop        chan struct{}
	done        chan struct{}
	log         zerolog.Logger
	mu          sync.RWMutex
}

func NewRoom(id string, log zerolog.Logger) *Room {
	return &Room{
		ID:          id,
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan []byte, 64),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		log:         log.With().Str("room", id).Logger(),
	}
}

func (r *Room) Run() {
	defer close(r.done)
	for {
		select {
		case sub := <-r.register:
			r.mu.Lock()
			r.subscribers[sub] = true
			r.mu.Unlock()
			r.log.Debug().Str("subscriber", sub.ID).Msg("joined")
		case sub := <-r.unregister:
			r.mu.Lock()
			if _, ok := r.subscribers[sub]; ok {
				delete(r.subscribers, sub)
				r.log.Debug().Str("subscriber", sub.ID).Msg("left")
			}
			r.mu.Unlock()
		case frame := <-r.broadcast:
			r.mu.Lock()
			for sub := range r.subscribers {
				if !sub.Deliver(frame) {
					delete(r.subscribers, sub)
					sub.Close()
					r.log.Warn().Str("subscriber", sub.ID).Msg("slow subscriber dropped")
				}
			}
			r.mu.Unlock()
		case <-r.stop:
			r.mu.Lock()
			for sub := range r.subscribers {
				sub.Close()
			}
			r.subscribers = map[*Subscriber]bool{}
			r.mu.Unlock()
			return
		}
	}
}

func (r *Room) Join(sub *Subscriber) {
	select {
	case r.register <- sub:
	case <-r.stop:
	}
}

func (r *Room) Leave(sub *Subscriber) {
	select {
	case r.unregister <- sub:
	case <-r.stop:
	}
}

func (r *Room) Broadcast(frame []byte) {
	select {
	case r.broadcast <- frame:
	case <-r.stop:
	}
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Manager manages multiple rooms
type Manager struct {
	Rooms map[string]*Room
	log   zerolog.Logger
	mu    sync.RWMutex
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Rooms: make(map[string]*Room),
		log:   log.With().Str("component", "room").Logger(),
	}
}

func (m *Manager) GetRoom(roomId string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.Rooms[roomId]; ok {
		return room
	}

	room := NewRoom(roomId, m.log)
	m.Rooms[roomId] = room
	go room.Run()
	return room
}

// Close stops every room and closes all subscriber queues.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, room := range m.Rooms {
		close(room.stop)
		<-room.done
		delete(m.Rooms, id)
	}
}
