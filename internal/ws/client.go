package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Status is the client connection state surfaced to consumers.
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	maxReconnectAttempts  = 10
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// Callback receives events delivered on a subscribed channel.
type Callback func(evt Event)

type subscription struct {
	id int
	cb Callback
}

// Client is a hub client that survives reconnects: on every successful
// connection it re-issues the subscriptions it holds, so consumers keep
// receiving events without re-subscribing themselves.
type Client struct {
	url    string
	token  string
	logger *zap.Logger

	// Reconnect tuning, overridable before Connect.
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration

	status atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string][]subscription
	nextID int
	closed bool

	writeMu sync.Mutex
}

// NewClient creates a client for the given ws:// URL. It does not connect.
func NewClient(url, token string, logger *zap.Logger) *Client {
	c := &Client{
		url:          url,
		token:        token,
		logger:       logger,
		maxAttempts:  maxReconnectAttempts,
		initialDelay: reconnectInitialDelay,
		maxDelay:     reconnectMaxDelay,
		subs:         make(map[string][]subscription),
	}
	c.status.Store(int32(StatusDisconnected))
	return c
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	return Status(c.status.Load())
}

// Connect dials the hub, replays held subscriptions, and starts the read
// loop. On connection loss the client reconnects with capped backoff before
// giving up and surfacing the error status.
func (c *Client) Connect(ctx context.Context) error {
	c.status.Store(int32(StatusConnecting))

	conn, err := c.dial(ctx)
	if err != nil {
		c.status.Store(int32(StatusError))
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.status.Store(int32(StatusConnected))

	c.resubscribeAll()
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	return conn, err
}

// Subscribe registers a callback for a channel and returns an unsubscribe
// function. The first callback on a channel emits a subscribe intent
// upstream; removing the last one emits an unsubscribe intent and drops the
// channel entry.
func (c *Client) Subscribe(channel string, cb Callback) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	first := len(c.subs[channel]) == 0
	c.subs[channel] = append(c.subs[channel], subscription{id: id, cb: cb})
	c.mu.Unlock()

	if first && c.Status() == StatusConnected {
		c.sendMessage(clientMessage{Action: actionSubscribe, Channel: channel})
	}

	return func() {
		c.mu.Lock()
		entries := c.subs[channel]
		for i, sub := range entries {
			if sub.id == id {
				entries = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		last := len(entries) == 0
		if last {
			delete(c.subs, channel)
		} else {
			c.subs[channel] = entries
		}
		c.mu.Unlock()

		if last && c.Status() == StatusConnected {
			c.sendMessage(clientMessage{Action: actionUnsubscribe, Channel: channel})
		}
	}
}

// Send publishes a client-originated message upstream. It is a no-op with a
// warning when the client is not connected.
func (c *Client) Send(channel string, data interface{}) {
	if c.Status() != StatusConnected {
		c.logger.Warn("Cannot send message, not connected", zap.String("channel", channel))
		return
	}
	c.sendMessage(clientMessage{Action: actionPublish, Channel: channel, Data: data})
}

// Close stops the client; no reconnect is attempted afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.status.Store(int32(StatusDisconnected))
}

func (c *Client) sendMessage(msg clientMessage) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		c.logger.Warn("Failed to write frame", zap.Error(err))
	}
}

// resubscribeAll re-issues a subscribe intent for every channel with at
// least one callback, supporting reconnection without losing interest.
func (c *Client) resubscribeAll() {
	c.mu.Lock()
	channels := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		c.sendMessage(clientMessage{Action: actionSubscribe, Channel: ch})
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				c.status.Store(int32(StatusDisconnected))
				return
			}
			c.logger.Warn("Connection lost", zap.Error(err))
			c.reconnect()
			return
		}
		c.dispatch(evt)
	}
}

// dispatch fires the channel's callbacks synchronously in registration
// order.
func (c *Client) dispatch(evt Event) {
	c.mu.Lock()
	entries := make([]subscription, len(c.subs[evt.Channel]))
	copy(entries, c.subs[evt.Channel])
	c.mu.Unlock()

	for _, sub := range entries {
		sub.cb(evt)
	}
}

func (c *Client) reconnect() {
	c.status.Store(int32(StatusConnecting))
	delay := c.initialDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			c.status.Store(int32(StatusDisconnected))
			return
		}

		time.Sleep(delay)
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			c.logger.Warn("Reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.status.Store(int32(StatusConnected))
		c.logger.Info("Reconnected", zap.Int("attempt", attempt))

		c.resubscribeAll()
		go c.readLoop(conn)
		return
	}

	c.logger.Error("Giving up after max reconnect attempts",
		zap.Int("attempts", c.maxAttempts))
	c.status.Store(int32(StatusError))
}
