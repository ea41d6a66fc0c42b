package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrame_IsControl(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"type":"ping","message":1712345678}`, true},
		{`{"type":"welcome"}`, true},
		{`{"identifier":"{\"channel\":\"MessagesChannel\"}","type":"confirm_subscription"}`, true},
		{`{"identifier":"{\"channel\":\"MessagesChannel\"}","message":{"id":2,"body":"yo"}}`, false},
		{`{"type":"disconnect","reason":"server_restart","reconnect":true}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var f Frame
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
			require.Equal(t, tt.want, f.IsControl())
		})
	}
}

func TestFrame_Payload(t *testing.T) {
	req := require.New(t)
	var f Frame
	raw := `{"identifier":"x","message":{"id":2,"body":"yo","created_at":"2024-03-01T10:00:00.000Z"}}`
	req.NoError(json.Unmarshal([]byte(raw), &f))

	m, err := f.Payload()
	req.NoError(err)
	req.Equal(MessageID("2"), m.ID)
	req.Equal("yo", m.Body)
	req.True(m.CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestFrame_Payload_Missing(t *testing.T) {
	for _, raw := range []string{`{"type":"disconnect"}`, `{"message":null}`, `{"type":"ping","message":17}`} {
		var f Frame
		require.NoError(t, json.Unmarshal([]byte(raw), &f))
		_, err := f.Payload()
		require.True(t, errors.Is(err, ErrNoPayload), raw)
	}
}

func TestSubscribe(t *testing.T) {
	req := require.New(t)
	cmd, err := Subscribe(DefaultChannel)
	req.NoError(err)

	b, err := json.Marshal(cmd)
	req.NoError(err)
	req.JSONEq(`{"command":"subscribe","identifier":"{\"channel\":\"MessagesChannel\"}"}`, string(b))

	ci, err := ParseIdentifier(cmd.Identifier)
	req.NoError(err)
	req.Equal(DefaultChannel, ci.Channel)
}

func TestParseIdentifier_Invalid(t *testing.T) {
	_, err := ParseIdentifier(`{"room":"1"}`)
	require.Error(t, err)
	_, err = ParseIdentifier(`not json`)
	require.Error(t, err)
}
