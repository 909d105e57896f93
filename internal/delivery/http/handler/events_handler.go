package handler

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"delivery-agent/internal/domain/delivery"
	"delivery-agent/internal/usecase/session"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 16
)

// Event types pushed to session subscribers.
const (
	EventStatusChange = "status_change"
	EventRouteChange  = "route_change"
	EventError        = "error"
)

type Event struct {
	Type      string               `json:"type"`
	Status    delivery.RouteStatus `json:"status,omitempty"`
	Route     *delivery.Route      `json:"route,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans session events out to websocket subscribers. A subscriber
// that cannot keep up is disconnected.
type EventHub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewEventHub accepts websocket upgrades from allowedOrigins. An empty list
// or "*" accepts any origin.
func NewEventHub(allowedOrigins []string, log *zap.Logger) *EventHub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &EventHub{
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

func (h *EventHub) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/session/events", h.Subscribe)
}

// Callbacks returns session callbacks that publish to the hub.
func (h *EventHub) Callbacks() session.Callbacks {
	return session.Callbacks{
		OnStatusChange: func(route *delivery.Route, status delivery.RouteStatus) {
			h.Publish(Event{Type: EventStatusChange, Status: status, Route: route})
		},
		OnRouteChange: func(route *delivery.Route) {
			h.Publish(Event{Type: EventRouteChange, Route: route})
		},
		OnError: func(err error) {
			h.Publish(Event{Type: EventError, Error: err.Error()})
		},
	}
}

// Publish never blocks on a slow subscriber.
func (h *EventHub) Publish(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("Failed to encode session event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("Dropping slow event subscriber", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

func (h *EventHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Subscribe upgrades the request and streams events until the peer leaves.
func (h *EventHub) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientSendSize)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("Event subscriber connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(client)
	h.readPump(client)
}

// Close disconnects every subscriber and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *EventHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *EventHub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readPump only handles control frames; subscribers do not send data.
func (h *EventHub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Event subscriber read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *EventHub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
