package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Frame types sent by the live channel server.
const (
	FrameTypePing                = "ping"
	FrameTypeWelcome             = "welcome"
	FrameTypeConfirmSubscription = "confirm_subscription"
	FrameTypeRejectSubscription  = "reject_subscription"
	FrameTypeDisconnect          = "disconnect"
)

// Commands sent by the client.
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
)

// DefaultChannel is the logical channel carrying chat messages.
const DefaultChannel = "MessagesChannel"

var ErrNoPayload = errors.New("frame carries no message")

var controlTypes = []string{FrameTypePing, FrameTypeWelcome, FrameTypeConfirmSubscription}

// Frame is one JSON object received on the live channel.
// Control frames have a Type; data frames carry a Message.
type Frame struct {
	Type       string          `json:"type,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Reconnect  *bool           `json:"reconnect,omitempty"`
}

// IsControl reports whether the frame manages connection or subscription
// state rather than carrying chat content.
func (f Frame) IsControl() bool {
	return lo.Contains(controlTypes, f.Type)
}

// Payload decodes the chat message embedded in a data frame.
func (f Frame) Payload() (Message, error) {
	raw := bytes.TrimSpace(f.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Message{}, ErrNoPayload
	}
	if raw[0] != '{' {
		return Message{}, fmt.Errorf("%w: not an object", ErrNoPayload)
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode frame message: %w", err)
	}
	return m, nil
}

// ChannelIdentifier names the channel a subscription joins. It travels as a
// JSON-encoded string inside Command.Identifier.
type ChannelIdentifier struct {
	Channel string `json:"channel"`
}

// Command is a client to server frame.
type Command struct {
	Command    string `json:"command"`
	Identifier string `json:"identifier"`
	Data       string `json:"data,omitempty"`
}

// Identifier encodes the descriptor of channel as carried in frames.
func Identifier(channel string) (string, error) {
	id, err := json.Marshal(ChannelIdentifier{Channel: channel})
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// Subscribe builds the registration frame for channel.
func Subscribe(channel string) (Command, error) {
	id, err := Identifier(channel)
	if err != nil {
		return Command{}, err
	}
	return Command{Command: CommandSubscribe, Identifier: id}, nil
}

// ParseIdentifier decodes the channel descriptor carried by a command.
func ParseIdentifier(identifier string) (ChannelIdentifier, error) {
	var ci ChannelIdentifier
	if err := json.Unmarshal([]byte(identifier), &ci); err != nil {
		return ChannelIdentifier{}, fmt.Errorf("parse identifier %q: %w", identifier, err)
	}
	if ci.Channel == "" {
		return ChannelIdentifier{}, fmt.Errorf("identifier %q names no channel", identifier)
	}
	return ci, nil
}
