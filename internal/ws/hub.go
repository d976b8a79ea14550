package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/internal/config"
	"github.com/comet-platform/golive/pkg/metrics"
)

// Hub owns the subscriber registry mapping channels to connections. All
// registry access is serialized behind the mutex; subscribe frames arrive on
// per-connection reader goroutines while publishes come from handlers and
// the event bridge.
type Hub struct {
	cfg      config.WSConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	conns       map[string]*Conn
	subscribers map[string]map[*Conn]struct{}
	closed      bool
}

// Conn is one client connection registered with the hub. The send channel is
// never closed; teardown is signaled on quit, so a publish racing a
// disconnect degrades to a drop instead of a send on a closed channel.
type Conn struct {
	id     string
	userID string
	hub    *Hub
	ws     *websocket.Conn
	send   chan []byte
	quit   chan struct{}

	mu       sync.Mutex
	channels map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WSConfig, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:       make(map[string]*Conn),
		subscribers: make(map[string]map[*Conn]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection under the
// authenticated user.
func (h *Hub) ServeWS(c *gin.Context, userID string) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Conn{
		id:       uuid.NewString(),
		userID:   userID,
		hub:      h,
		ws:       ws,
		send:     make(chan []byte, h.cfg.SendBufferSize),
		quit:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.conns[conn.id] = conn
	h.mu.Unlock()

	metrics.WSActiveConnections.Inc()
	h.logger.Info("WebSocket connected",
		zap.String("connection_id", conn.id),
		zap.String("user_id", userID))

	go conn.writePump()
	go conn.readPump()
}

// Publish fans an event out to every connection subscribed to its channel.
// Delivery is best-effort: connections with a full send buffer are skipped
// rather than blocking the publisher.
func (h *Hub) Publish(evt Event) {
	if evt.Channel == "" {
		evt.Channel = evt.Type.Channel()
	}
	if !ValidChannel(evt.Channel) {
		h.logger.Warn("Dropping event for unknown channel",
			zap.String("channel", evt.Channel),
			zap.String("type", string(evt.Type)))
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	subs := h.subscribers[evt.Channel]
	targets := make([]*Conn, 0, len(subs))
	for conn := range subs {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.send <- data:
			metrics.WSEventsDelivered.WithLabelValues(evt.Channel).Inc()
		case <-conn.quit:
			// The snapshot is stale; the connection is being torn down.
			metrics.WSEventsDropped.WithLabelValues(evt.Channel).Inc()
		default:
			metrics.WSEventsDropped.WithLabelValues(evt.Channel).Inc()
			h.logger.Warn("Dropping event for slow subscriber",
				zap.String("connection_id", conn.id),
				zap.String("channel", evt.Channel))
		}
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SubscriberCount returns how many connections are subscribed to a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}

// Close disconnects every client and rejects new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.ws.Close()
	}
}

func (h *Hub) subscribe(conn *Conn, channel string) {
	if !ValidChannel(channel) {
		h.logger.Warn("Subscribe to unknown channel ignored",
			zap.String("connection_id", conn.id),
			zap.String("channel", channel))
		return
	}

	h.mu.Lock()
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[*Conn]struct{})
	}
	h.subscribers[channel][conn] = struct{}{}
	h.mu.Unlock()

	conn.mu.Lock()
	conn.channels[channel] = struct{}{}
	conn.mu.Unlock()

	h.logger.Debug("Subscribed",
		zap.String("connection_id", conn.id),
		zap.String("channel", channel))
}

func (h *Hub) unsubscribe(conn *Conn, channel string) {
	h.mu.Lock()
	if subs := h.subscribers[channel]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subscribers, channel)
		}
	}
	h.mu.Unlock()

	conn.mu.Lock()
	delete(conn.channels, channel)
	conn.mu.Unlock()
}

// removeConn drops the connection and every subscription it holds.
func (h *Hub) removeConn(conn *Conn) {
	conn.mu.Lock()
	channels := make([]string, 0, len(conn.channels))
	for ch := range conn.channels {
		channels = append(channels, ch)
	}
	conn.mu.Unlock()

	h.mu.Lock()
	if _, ok := h.conns[conn.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn.id)
	for _, ch := range channels {
		if subs := h.subscribers[ch]; subs != nil {
			delete(subs, conn)
			if len(subs) == 0 {
				delete(h.subscribers, ch)
			}
		}
	}
	h.mu.Unlock()

	close(conn.quit)
	metrics.WSActiveConnections.Dec()
	h.logger.Info("WebSocket disconnected", zap.String("connection_id", conn.id))
}

// readPump consumes subscribe/unsubscribe/publish frames until the
// connection drops, then cleans up all of its subscriptions.
func (c *Conn) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Warn("Malformed client frame",
				zap.String("connection_id", c.id),
				zap.Error(err))
			continue
		}

		switch msg.Action {
		case actionSubscribe:
			c.hub.subscribe(c, msg.Channel)
		case actionUnsubscribe:
			c.hub.unsubscribe(c, msg.Channel)
		case actionPublish:
			c.hub.Publish(Event{
				Channel: msg.Channel,
				Type:    EventNotification,
				Payload: msg.Data,
			})
		default:
			c.hub.logger.Warn("Unknown client action",
				zap.String("connection_id", c.id),
				zap.String("action", msg.Action))
		}
	}
}

// writePump flushes outbound events and keeps the connection alive with
// pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.quit:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
