// Package storage keeps the ordered chat history of the message service.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"chatroom/model"

	"github.com/cockroachdb/pebble/v2"
)

// MessageLog is an append-only list of messages with sequential numeric ids.
// With a data directory every message is also written to a Pebble store,
// keyed by its 8-byte big-endian id, and reloaded on open.
type MessageLog struct {
	mu       sync.RWMutex
	messages []model.Message
	next     uint64
	db       *pebble.DB
	now      func() time.Time
}

// Open returns a log backed by dir. An empty dir keeps the log in memory.
func Open(dir string) (*MessageLog, error) {
	l := &MessageLog{
		messages: make([]model.Message, 0, 256),
		next:     1,
		now:      time.Now,
	}
	if dir == "" {
		return l, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}
	l.db = db
	if err := l.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *MessageLog) load() error {
	it, err := l.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()
	for it.First(); it.Valid(); it.Next() {
		var m model.Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return fmt.Errorf("decode stored message: %w", err)
		}
		l.messages = append(l.messages, m)
		if len(it.Key()) >= 8 {
			l.next = binary.BigEndian.Uint64(it.Key()[:8]) + 1
		}
	}
	return nil
}

// Append stores a new message with the next id and the current time.
func (l *MessageLog) Append(body string) (model.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := model.Message{
		ID:        model.MessageID(strconv.FormatUint(l.next, 10)),
		Body:      body,
		CreatedAt: l.now().UTC(),
	}
	if l.db != nil {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, l.next)
		val, err := json.Marshal(m)
		if err != nil {
			return model.Message{}, err
		}
		if err := l.db.Set(key, val, pebble.Sync); err != nil {
			return model.Message{}, fmt.Errorf("persist message: %w", err)
		}
	}
	l.next++
	l.messages = append(l.messages, m)
	return m, nil
}

// All returns the history, oldest first.
func (l *MessageLog) All() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func (l *MessageLog) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
