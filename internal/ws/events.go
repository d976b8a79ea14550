// Package ws implements the real-time fan-out layer: a WebSocket hub that
// routes domain events to dashboard clients subscribed by channel, and a Go
// client with automatic reconnect and resubscription.
package ws

// Channel names clients can subscribe to.
const (
	ChannelPipelines     = "pipelines"
	ChannelTests         = "tests"
	ChannelDeployments   = "deployments"
	ChannelMetrics       = "metrics"
	ChannelNotifications = "notifications"
)

// EventType identifies a domain event on the wire.
type EventType string

const (
	EventPipelineRunUpdate EventType = "pipeline:run:update"
	EventTestRunUpdate     EventType = "test:run:update"
	EventDeploymentUpdate  EventType = "deployment:update"
	EventMetricsUpdate     EventType = "metrics:update"
	EventNotification      EventType = "notification"
)

// Channel returns the channel an event type is delivered on, or "" for
// unrecognized types.
func (t EventType) Channel() string {
	switch t {
	case EventPipelineRunUpdate:
		return ChannelPipelines
	case EventTestRunUpdate:
		return ChannelTests
	case EventDeploymentUpdate:
		return ChannelDeployments
	case EventMetricsUpdate:
		return ChannelMetrics
	case EventNotification:
		return ChannelNotifications
	default:
		return ""
	}
}

// ValidChannel reports whether clients may subscribe to the given channel.
func ValidChannel(channel string) bool {
	switch channel {
	case ChannelPipelines, ChannelTests, ChannelDeployments, ChannelMetrics, ChannelNotifications:
		return true
	}
	return false
}

// Event is a transient domain event fanned out to current subscribers only;
// there is no replay or buffering for late subscribers.
type Event struct {
	Channel string      `json:"channel"`
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// clientMessage is the frame clients send: subscribe/unsubscribe intents and
// client-originated publishes.
type clientMessage struct {
	Action  string      `json:"action"`
	Channel string      `json:"channel"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPublish     = "publish"
)
