package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RateLimitChecks counts admission decisions by preset and outcome (allowed/rejected)
var RateLimitChecks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "golive_ratelimit_checks_total",
		Help: "Total number of rate limit admission decisions",
	},
	[]string{"preset", "outcome"},
)

// RateLimitFailOpen counts requests admitted because the cache backend errored
var RateLimitFailOpen = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "golive_ratelimit_fail_open_total",
		Help: "Requests admitted due to rate limit backend failure",
	},
)

// WebSocket fan-out metrics
var (
	WSActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "golive_ws_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	WSEventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_ws_events_delivered_total",
			Help: "Events delivered to WebSocket subscribers by channel",
		},
		[]string{"channel"},
	)

	WSEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_ws_events_dropped_total",
			Help: "Events dropped because a subscriber send buffer was full",
		},
		[]string{"channel"},
	)
)

// EventsConsumed counts upstream domain events consumed from the event bridge
var EventsConsumed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "golive_events_consumed_total",
		Help: "Upstream domain events consumed by the event bridge",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(RateLimitChecks, RateLimitFailOpen)
	prometheus.MustRegister(WSActiveConnections, WSEventsDelivered, WSEventsDropped)
	prometheus.MustRegister(EventsConsumed)
}
