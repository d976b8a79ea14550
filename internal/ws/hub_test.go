package ws

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/internal/config"
)

func testWSConfig() config.WSConfig {
	return config.WSConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  16,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    5 * time.Second,
		MaxMessageSize:  4096,
	}
}

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(testWSConfig(), zap.NewNop())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { hub.ServeWS(c, "u1") })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestFanOutDeliversToAllSubscribers(t *testing.T) {
	hub, srv := newHubServer(t)

	conn1 := dialHub(t, srv)
	conn2 := dialHub(t, srv)

	require.NoError(t, conn1.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelPipelines}))
	require.NoError(t, conn2.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelPipelines}))
	waitFor(t, func() bool { return hub.SubscriberCount(ChannelPipelines) == 2 }, "both subscribed")

	hub.Publish(Event{Type: EventPipelineRunUpdate, Payload: map[string]string{"run_id": "r1"}})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		evt := readEvent(t, conn)
		assert.Equal(t, ChannelPipelines, evt.Channel)
		assert.Equal(t, EventPipelineRunUpdate, evt.Type)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, srv := newHubServer(t)

	conn1 := dialHub(t, srv)
	conn2 := dialHub(t, srv)

	require.NoError(t, conn1.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelPipelines}))
	require.NoError(t, conn2.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelPipelines}))
	waitFor(t, func() bool { return hub.SubscriberCount(ChannelPipelines) == 2 }, "both subscribed")

	require.NoError(t, conn1.WriteJSON(clientMessage{Action: "unsubscribe", Channel: ChannelPipelines}))
	waitFor(t, func() bool { return hub.SubscriberCount(ChannelPipelines) == 1 }, "one left")

	hub.Publish(Event{Type: EventPipelineRunUpdate, Payload: map[string]string{"run_id": "r2"}})

	evt := readEvent(t, conn2)
	assert.Equal(t, EventPipelineRunUpdate, evt.Type)

	// The unsubscribed connection receives nothing.
	conn1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn1.ReadMessage()
	assert.Error(t, err)
}

func TestConnectionCloseCascadesCleanup(t *testing.T) {
	hub, srv := newHubServer(t)

	conn := dialHub(t, srv)
	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelPipelines}))
	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelDeployments}))
	waitFor(t, func() bool {
		return hub.SubscriberCount(ChannelPipelines) == 1 && hub.SubscriberCount(ChannelDeployments) == 1
	}, "subscriptions registered")

	conn.Close()

	waitFor(t, func() bool { return hub.ConnectionCount() == 0 }, "connection removed")
	assert.Zero(t, hub.SubscriberCount(ChannelPipelines))
	assert.Zero(t, hub.SubscriberCount(ChannelDeployments))
}

func TestSubscribeUnknownChannelIgnored(t *testing.T) {
	hub, srv := newHubServer(t)

	conn := dialHub(t, srv)
	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Channel: "no-such-channel"}))
	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelTests}))
	waitFor(t, func() bool { return hub.SubscriberCount(ChannelTests) == 1 }, "valid channel registered")

	assert.Zero(t, hub.SubscriberCount("no-such-channel"))
}

func TestEventTypeChannelRouting(t *testing.T) {
	assert.Equal(t, ChannelPipelines, EventPipelineRunUpdate.Channel())
	assert.Equal(t, ChannelTests, EventTestRunUpdate.Channel())
	assert.Equal(t, ChannelDeployments, EventDeploymentUpdate.Channel())
	assert.Equal(t, ChannelMetrics, EventMetricsUpdate.Channel())
	assert.Equal(t, ChannelNotifications, EventNotification.Channel())
	assert.Equal(t, "", EventType("bogus").Channel())
}

// Publishers hold a snapshot of the subscriber set taken before a concurrent
// disconnect finishes tearing the connection down. Sending to such a
// connection must degrade to a drop, never a panic.
func TestPublishDuringDisconnectIsDropOnly(t *testing.T) {
	hub, srv := newHubServer(t)

	conns := make([]*websocket.Conn, 0, 20)
	for i := 0; i < 20; i++ {
		conn := dialHub(t, srv)
		require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelMetrics}))
		conns = append(conns, conn)
	}
	waitFor(t, func() bool { return hub.SubscriberCount(ChannelMetrics) == 20 }, "all subscribed")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish(Event{Type: EventMetricsUpdate, Payload: map[string]int{"cpu": 80}})
				}
			}
		}()
	}

	for _, conn := range conns {
		conn.Close()
	}
	waitFor(t, func() bool { return hub.ConnectionCount() == 0 }, "all connections removed")

	close(stop)
	wg.Wait()
}

func TestClientPublishFlowsThroughHub(t *testing.T) {
	hub, srv := newHubServer(t)

	subscriber := dialHub(t, srv)
	publisher := dialHub(t, srv)

	require.NoError(t, subscriber.WriteJSON(clientMessage{Action: "subscribe", Channel: ChannelNotifications}))
	waitFor(t, func() bool { return hub.SubscriberCount(ChannelNotifications) == 1 }, "subscribed")

	require.NoError(t, publisher.WriteJSON(clientMessage{
		Action:  "publish",
		Channel: ChannelNotifications,
		Data:    map[string]string{"text": "deploy finished"},
	}))

	evt := readEvent(t, subscriber)
	assert.Equal(t, EventNotification, evt.Type)
	assert.Equal(t, ChannelNotifications, evt.Channel)
}
