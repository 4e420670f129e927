package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
	"github.com/teamspace-hq/teamspace/workspace/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Gateway upgrades authenticated requests to websockets and lets the client
// join rooms it holds a signed token for.
//
// Client frames:
//
//	{"action":"join","room":"/companies/c1/applications","token":"<signed room token>"}
//	{"action":"leave","room":"/companies/c1/applications"}
//
// Server frames are either realtime events or {"type":"ack"|"error", ...}.
type Gateway struct {
	hub      *Hub
	signer   *Signer
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewGateway returns a gateway. checkOrigin may be nil to accept same-origin
// requests only.
func NewGateway(hub *Hub, signer *Signer, logger *slog.Logger, checkOrigin func(*http.Request) bool) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		hub:    hub,
		signer: signer,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

type clientFrame struct {
	Action string `json:"action"`
	Room   string `json:"room"`
	Token  string `json:"token"`
}

type serverFrame struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Room   string `json:"room,omitempty"`
	Error  string `json:"error,omitempty"`
}

type client struct {
	conn    *websocket.Conn
	actorID string
	send    chan []byte
	once    sync.Once
	done    chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// ServeHTTP expects the auth middleware to have stored the actor.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := execution.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.WarnContext(r.Context(), "websocket upgrade failed", logging.Error(err))
		return
	}

	c := &client{
		conn:    conn,
		actorID: actor.ID,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
	metrics.WebsocketConnections.Inc()
	g.logger.DebugContext(r.Context(), "websocket connected", logging.UserID(actor.ID))

	go g.writeLoop(c)
	g.readLoop(c)

	g.hub.leaveAll(c)
	c.close()
	metrics.WebsocketConnections.Dec()
}

func (g *Gateway) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.reply(c, serverFrame{Type: "error", Error: "malformed frame"})
			continue
		}
		g.handleFrame(c, frame)
	}
}

func (g *Gateway) handleFrame(c *client, frame clientFrame) {
	switch frame.Action {
	case "join":
		if _, err := g.signer.Verify(frame.Token, c.actorID, frame.Room); err != nil {
			g.logger.Debug("room join rejected",
				logging.UserID(c.actorID),
				logging.Room(frame.Room),
				logging.Error(err))
			g.reply(c, serverFrame{Type: "error", Action: frame.Action, Room: frame.Room, Error: "invalid room token"})
			return
		}
		g.hub.join(frame.Room, c)
		g.reply(c, serverFrame{Type: "ack", Action: frame.Action, Room: frame.Room})
	case "leave":
		g.hub.leave(frame.Room, c)
		g.reply(c, serverFrame{Type: "ack", Action: frame.Action, Room: frame.Room})
	default:
		g.reply(c, serverFrame{Type: "error", Action: frame.Action, Error: "unknown action"})
	}
}

func (g *Gateway) reply(c *client, frame serverFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (g *Gateway) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
