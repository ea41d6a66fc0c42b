package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatroom/model"
	"chatroom/server/room"
	"chatroom/server/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	history *storage.MessageLog
	rooms   *room.Manager
	srv     *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	history, err := storage.Open("")
	require.NoError(t, err)
	rooms := room.NewManager(zerolog.Nop())
	ts := &testServer{
		history: history,
		rooms:   rooms,
		srv:     httptest.NewServer(NewRouter(history, rooms, zerolog.Nop())),
	}
	t.Cleanup(func() {
		ts.srv.Close()
		rooms.Close()
		_ = history.Close()
	})
	return ts
}

func (ts *testServer) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMessages_CreateAndList(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := ts.post(t, `{"body":"  <b>hi</b> &amp; you  "}`)
	req.Equal(http.StatusCreated, resp.StatusCode)
	req.Equal("application/json", resp.Header.Get("Content-Type"))
	var created model.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&created))
	req.Equal(model.MessageID("1"), created.ID)
	req.Equal("hi & you", created.Body)
	req.False(created.CreatedAt.IsZero())

	list, err := http.Get(ts.srv.URL + "/messages")
	req.NoError(err)
	defer list.Body.Close()
	req.Equal(http.StatusOK, list.StatusCode)
	var messages []model.Message
	req.NoError(json.NewDecoder(list.Body).Decode(&messages))
	req.Len(messages, 1)
	req.Equal(created.ID, messages[0].ID)
}

func TestMessages_ListEmptyIsArray(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.JSONEq(t, `[]`, string(raw))
}

func TestMessages_CreateRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"body":`, http.StatusBadRequest},
		{"missing", `{}`, http.StatusUnprocessableEntity},
		{"blank", `{"body":"   "}`, http.StatusUnprocessableEntity},
		{"markup only", `{"body":"<br/><hr>"}`, http.StatusUnprocessableEntity},
		{"too long", `{"body":"` + strings.Repeat("a", model.MaxBodyLength+1) + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp := ts.post(t, tt.body)
			require.Equal(t, tt.code, resp.StatusCode)
			var e ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			require.NotEmpty(t, e.Error)
			require.Zero(t, ts.history.Len())
		})
	}
}

func TestMessages_CreateBroadcasts(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	sub := room.NewSubscriber(4)
	ts.rooms.GetRoom(model.DefaultChannel).Join(sub)

	req.Equal(http.StatusCreated, ts.post(t, `{"body":"hello"}`).StatusCode)

	select {
	case b := <-sub.Messages():
		var f model.Frame
		req.NoError(json.Unmarshal(b, &f))
		req.False(f.IsControl())
		req.JSONEq(`{"channel":"MessagesChannel"}`, f.Identifier)
		m, err := f.Payload()
		req.NoError(err)
		req.Equal("hello", m.Body)
		req.Equal(model.MessageID("1"), m.ID)
	case <-time.After(time.Second):
		t.Fatal("no broadcast")
	}
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	_, err := ts.history.Append("one")
	req.NoError(err)

	resp, err := http.Get(ts.srv.URL + "/health")
	req.NoError(err)
	defer resp.Body.Close()
	var h HealthResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&h))
	req.Equal("UP", h.Status)
	req.Equal(1, h.Messages)
}
