package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from arbitrary origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientCommand is what a connected peer may send: subscription changes
// and pings.
type clientCommand struct {
	Action string   `json:"action"`
	Events []string `json:"events,omitempty"`
}

// ClientGauge reports the connected client count to metrics.
type ClientGauge interface {
	SetWSClients(n int)
}

// HandlerParams collects the WebSocket endpoint dependencies.
type HandlerParams struct {
	fx.In

	Hub   *Hub
	Log   *zap.Logger
	Gauge ClientGauge `optional:"true"`
}

// Handler upgrades dashboard connections and bridges them onto the hub.
type Handler struct {
	hub   *Hub
	log   *zap.Logger
	gauge ClientGauge
}

// NewHandler returns the WebSocket endpoint handler.
func NewHandler(p HandlerParams) *Handler {
	return &Handler{hub: p.Hub, log: p.Log.Named("realtime"), gauge: p.Gauge}
}

func (h *Handler) reportClients() {
	if h.gauge != nil {
		h.gauge.SetWSClients(h.hub.ClientCount())
	}
}

// Serve is the gin handler for GET /ws.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := h.hub.Register()
	h.reportClients()
	h.log.Debug("client connected", zap.Int("clients", h.hub.ClientCount()))

	// Command replies are funneled to the write loop; the connection has
	// a single writer.
	replies := make(chan Event, 8)

	go h.writeLoop(conn, client, replies)
	h.readLoop(conn, client, replies)
}

func reply(replies chan<- Event, ev Event) {
	select {
	case replies <- ev:
	default:
	}
}

// readLoop consumes subscription commands until the peer disconnects.
func (h *Handler) readLoop(conn *websocket.Conn, client *Client, replies chan<- Event) {
	defer func() {
		client.Close()
		conn.Close()
		h.reportClients()
		h.log.Debug("client disconnected", zap.Int("clients", h.hub.ClientCount()))
	}()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			reply(replies, Event{Type: EventError, Payload: gin.H{"error": "malformed command"}, Timestamp: time.Now()})
			continue
		}

		switch cmd.Action {
		case "subscribe":
			client.Subscribe(cmd.Events...)
			reply(replies, Event{Type: EventNotification, Payload: gin.H{"message": "subscribed", "events": client.Topics()}, Timestamp: time.Now()})
		case "unsubscribe":
			client.Unsubscribe(cmd.Events...)
			reply(replies, Event{Type: EventNotification, Payload: gin.H{"message": "unsubscribed", "events": client.Topics()}, Timestamp: time.Now()})
		case "ping":
			reply(replies, Event{Type: EventNotification, Payload: gin.H{"message": "pong"}, Timestamp: time.Now()})
		default:
			reply(replies, Event{Type: EventError, Payload: gin.H{"error": "unknown action " + cmd.Action}, Timestamp: time.Now()})
		}
	}
}

// writeLoop drains the client's event channel onto the socket and keeps
// the connection alive with pings. A failed write closes the client.
func (h *Handler) writeLoop(conn *websocket.Conn, client *Client, replies <-chan Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
		conn.Close()
	}()

	welcome := Event{
		Type:      EventNotification,
		Payload:   gin.H{"message": "connected to invoice status stream"},
		Timestamp: time.Now(),
	}
	if !h.send(conn, welcome) {
		return
	}

	for {
		select {
		case ev := <-client.Events():
			if !h.send(conn, ev) {
				return
			}
		case ev := <-replies:
			if !h.send(conn, ev) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.Done():
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, ev Event) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		h.log.Debug("write failed, pruning client", zap.Error(err))
		return false
	}
	return true
}
