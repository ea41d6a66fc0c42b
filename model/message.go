package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MaxBodyLength is the longest body the message service accepts.
const MaxBodyLength = 500

// MessageID is the service-assigned identifier of a message. The client treats
// it as opaque; it accepts both JSON numbers and strings.
type MessageID string

func (id *MessageID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(n.String())
	return nil
}

// MarshalJSON writes numeric ids back as JSON numbers. Only canonical
// integers qualify; "007" or "+5" stay strings.
func (id MessageID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Message represents one chat message as served by the message service
type Message struct {
	ID        MessageID `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PostRequest is the body of POST /messages
type PostRequest struct {
	Body string `json:"body" validate:"required,max=500"`
}
