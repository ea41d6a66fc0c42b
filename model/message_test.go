package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageID_Unmarshal(t *testing.T) {
	tests := map[string]MessageID{
		`{"id":1}`:          "1",
		`{"id":"a1b2"}`:     "a1b2",
		`{"id":null}`:       "",
		`{"id":9007199254}`: "9007199254",
	}
	for raw, want := range tests {
		var m Message
		require.NoError(t, json.Unmarshal([]byte(raw), &m), raw)
		require.Equal(t, want, m.ID, raw)
	}
}

func TestMessageID_Marshal(t *testing.T) {
	req := require.New(t)
	b, err := json.Marshal(Message{ID: "42", Body: "hi"})
	req.NoError(err)
	req.Contains(string(b), `"id":42`)

	b, err = json.Marshal(Message{ID: "abc", Body: "hi"})
	req.NoError(err)
	req.Contains(string(b), `"id":"abc"`)
}

func TestMessageID_MarshalNonCanonicalNumbers(t *testing.T) {
	tests := map[MessageID]string{
		"007": `"007"`,
		"+5":  `"+5"`,
		"-0":  `"-0"`,
		"-12": `-12`,
		"0":   `0`,
	}
	for id, want := range tests {
		b, err := json.Marshal(id)
		require.NoError(t, err, string(id))
		require.Equal(t, want, string(b), string(id))

		var back MessageID
		require.NoError(t, json.Unmarshal(b, &back))
		require.Equal(t, id, back)
	}
}
