// Package events bridges upstream domain events from Kafka into the
// WebSocket fan-out. Producers (pipeline runners, test executors, deploy
// workers) publish JSON messages; the bridge maps them onto hub channels.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/internal/config"
	"github.com/comet-platform/golive/internal/ws"
	"github.com/comet-platform/golive/pkg/metrics"
)

// message is the upstream wire format on the events topic.
type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher is the downstream the bridge feeds; satisfied by *ws.Hub.
type Publisher interface {
	Publish(evt ws.Event)
}

// Bridge consumes the domain-events topic and republishes onto the hub.
type Bridge struct {
	reader *kafka.Reader
	hub    Publisher
	logger *zap.Logger
}

// NewBridge creates a consumer bound to the configured topic and group.
func NewBridge(cfg config.EventsConfig, hub Publisher, logger *zap.Logger) *Bridge {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Bridge{reader: reader, hub: hub, logger: logger}
}

// Run consumes until the context is canceled. Malformed or unrecognized
// messages are logged and skipped; they never stop the bridge.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("Event bridge started")
	for {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event bridge fetch: %w", err)
		}

		evt, err := MapMessage(msg.Value)
		if err != nil {
			b.logger.Warn("Skipping unroutable event message",
				zap.ByteString("value", msg.Value),
				zap.Error(err))
		} else {
			metrics.EventsConsumed.WithLabelValues(string(evt.Type)).Inc()
			b.hub.Publish(evt)
		}

		if err := b.reader.CommitMessages(ctx, msg); err != nil {
			b.logger.Warn("Failed to commit offset", zap.Error(err))
		}
	}
}

// Close releases the underlying reader.
func (b *Bridge) Close() error {
	return b.reader.Close()
}

// MapMessage decodes an upstream message and routes it onto its channel.
func MapMessage(value []byte) (ws.Event, error) {
	var msg message
	if err := json.Unmarshal(value, &msg); err != nil {
		return ws.Event{}, fmt.Errorf("decode event message: %w", err)
	}

	evtType := ws.EventType(msg.Type)
	channel := evtType.Channel()
	if channel == "" {
		return ws.Event{}, fmt.Errorf("unrecognized event type %q", msg.Type)
	}

	return ws.Event{
		Channel: channel,
		Type:    evtType,
		Payload: msg.Payload,
	}, nil
}
