package handler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"chatroom/client/api"
	"chatroom/client/cable"
	"chatroom/client/store"
	"chatroom/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) cableURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/cable"
}

func readFrame(t *testing.T, conn *websocket.Conn) model.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f model.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestCable_Handshake(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(ts.cableURL(), nil)
	req.NoError(err)
	defer conn.Close()

	req.Equal(model.FrameTypeWelcome, readFrame(t, conn).Type)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	bad := model.Command{Command: model.CommandSubscribe, Identifier: `{"channel":"NopeChannel"}`}
	req.NoError(conn.WriteJSON(bad))
	f := readFrame(t, conn)
	req.Equal(model.FrameTypeRejectSubscription, f.Type)
	req.Equal(bad.Identifier, f.Identifier)

	sub, err := model.Subscribe(model.DefaultChannel)
	req.NoError(err)
	req.NoError(conn.WriteJSON(sub))
	f = readFrame(t, conn)
	req.Equal(model.FrameTypeConfirmSubscription, f.Type)
	req.Equal(sub.Identifier, f.Identifier)

	req.Equal(201, ts.post(t, `{"body":"over the wire"}`).StatusCode)
	for {
		f = readFrame(t, conn)
		if f.Type == model.FrameTypePing {
			continue
		}
		break
	}
	m, err := f.Payload()
	req.NoError(err)
	req.Equal("over the wire", m.Body)
}

func TestCable_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a keepalive")
	}
	req := require.New(t)
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(ts.cableURL(), nil)
	req.NoError(err)
	defer conn.Close()
	readFrame(t, conn)

	req.NoError(conn.SetReadDeadline(time.Now().Add(pingInterval + time.Second)))
	var f model.Frame
	req.NoError(conn.ReadJSON(&f))
	req.Equal(model.FrameTypePing, f.Type)
	var ts64 int64
	req.NoError(json.Unmarshal(f.Message, &ts64))
	req.Positive(ts64)
}

// A full client session: the bulk fetch seeds the store, then a message
// posted through the API arrives once, through the live channel.
func TestCable_ClientRoundTrip(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	_, err := ts.history.Append("from history")
	req.NoError(err)

	client := api.New(ts.srv.URL)
	st := store.New(client, zerolog.Nop())
	mgr := cable.New(cable.Config{URL: ts.cableURL(), Channel: model.DefaultChannel}, zerolog.Nop())
	confirmed := make(chan struct{}, 1)
	mgr.OnFrame(st.OnSubscriptionEvent)
	mgr.OnFrame(func(f model.Frame) {
		if f.Type == model.FrameTypeConfirmSubscription {
			confirmed <- struct{}{}
		}
	})

	ctx := context.Background()
	req.NoError(st.LoadInitial(ctx))
	req.NoError(mgr.Connect(ctx))
	defer mgr.Disconnect()

	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not confirmed")
	}

	req.NoError(client.PostMessage(ctx, "live one"))

	req.Eventually(func() bool { return len(st.State().Messages) == 2 }, 2*time.Second, 10*time.Millisecond)
	messages := st.State().Messages
	req.Equal("from history", messages[0].Body)
	req.Equal("live one", messages[1].Body)
	req.Equal(model.MessageID("2"), messages[1].ID)
	req.Equal(store.StatusReady, st.State().Status())
}
