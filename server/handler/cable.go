package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chatroom/model"
	"chatroom/server/room"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	pingInterval = 3 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// cableConn is one client of the live channel endpoint. The reader handles
// commands; every outbound frame goes through the subscriber queue so that
// only the writer goroutine writes to the socket.
type cableConn struct {
	conn     *websocket.Conn
	sub      *room.Subscriber
	rooms    *room.Manager
	channels []string
	joined   map[string]*room.Room
	log      zerolog.Logger
}

// HandleCable serves the live channel protocol. Clients may subscribe to the
// listed channels only.
func HandleCable(rooms *room.Manager, log zerolog.Logger, channels ...string) http.HandlerFunc {
	log = log.With().Str("component", "cable").Logger()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade failed")
			return
		}

		sub := room.NewSubscriber(sendBuffer)
		c := &cableConn{
			conn:     conn,
			sub:      sub,
			rooms:    rooms,
			channels: channels,
			joined:   make(map[string]*room.Room),
			log:      log.With().Str("subscriber", sub.ID).Logger(),
		}
		c.log.Debug().Str("remote", r.RemoteAddr).Msg("connected")

		c.queue(model.Frame{Type: model.FrameTypeWelcome})
		done := make(chan struct{})
		go func() {
			defer close(done)
			c.writeLoop()
		}()

		c.readLoop()

		for _, rm := range c.joined {
			rm.Leave(sub)
		}
		sub.Close()
		<-done
		c.log.Debug().Msg("disconnected")
	}
}

func (c *cableConn) readLoop() {
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		var cmd model.Command
		if err := json.Unmarshal(p, &cmd); err != nil {
			c.log.Debug().Err(err).Msg("malformed command ignored")
			continue
		}
		switch cmd.Command {
		case model.CommandSubscribe:
			c.subscribe(cmd.Identifier)
		case model.CommandUnsubscribe:
			if rm, ok := c.joined[cmd.Identifier]; ok {
				rm.Leave(c.sub)
				delete(c.joined, cmd.Identifier)
			}
		default:
			c.log.Debug().Str("command", cmd.Command).Msg("unsupported command ignored")
		}
	}
}

func (c *cableConn) subscribe(identifier string) {
	ci, err := model.ParseIdentifier(identifier)
	if err != nil || !lo.Contains(c.channels, ci.Channel) {
		c.log.Info().Str("identifier", identifier).Msg("subscription rejected")
		c.queue(model.Frame{Type: model.FrameTypeRejectSubscription, Identifier: identifier})
		return
	}
	if _, ok := c.joined[identifier]; !ok {
		rm := c.rooms.GetRoom(ci.Channel)
		rm.Join(c.sub)
		c.joined[identifier] = rm
	}
	c.queue(model.Frame{Type: model.FrameTypeConfirmSubscription, Identifier: identifier})
}

func (c *cableConn) queue(f model.Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	if !c.sub.Deliver(b) {
		c.log.Warn().Str("type", f.Type).Msg("frame dropped")
	}
}

func (c *cableConn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.sub.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug().Err(err).Msg("write error")
				return
			}
		case now := <-ticker.C:
			ping, _ := json.Marshal(model.Frame{
				Type:    model.FrameTypePing,
				Message: json.RawMessage(strconv.FormatInt(now.Unix(), 10)),
			})
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}
