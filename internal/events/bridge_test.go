package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comet-platform/golive/internal/ws"
)

func TestMapMessageRoutesByType(t *testing.T) {
	cases := []struct {
		msgType string
		channel string
	}{
		{"pipeline:run:update", ws.ChannelPipelines},
		{"test:run:update", ws.ChannelTests},
		{"deployment:update", ws.ChannelDeployments},
		{"metrics:update", ws.ChannelMetrics},
		{"notification", ws.ChannelNotifications},
	}

	for _, tc := range cases {
		evt, err := MapMessage([]byte(`{"type":"` + tc.msgType + `","payload":{"id":"x"}}`))
		require.NoError(t, err, tc.msgType)
		assert.Equal(t, tc.channel, evt.Channel)
		assert.Equal(t, ws.EventType(tc.msgType), evt.Type)
	}
}

func TestMapMessageRejectsUnknownType(t *testing.T) {
	_, err := MapMessage([]byte(`{"type":"order:filled","payload":{}}`))
	assert.Error(t, err)
}

func TestMapMessageRejectsMalformedJSON(t *testing.T) {
	_, err := MapMessage([]byte(`{not json`))
	assert.Error(t, err)
}
