package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelToTopicAndKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		channel   string
		wantTopic string
		wantKey   string
		wantErr   bool
	}{
		{
			name:      "room status channel",
			channel:   RoomStatusChannel(22637261),
			wantTopic: "live-room-status",
			wantKey:   "22637261",
		},
		{
			name:      "underscore suffix",
			channel:   "live:room:7:status_v2",
			wantTopic: "live-room-status-v2",
			wantKey:   "7",
		},
		{name: "too few parts", channel: "live:room:7", wantErr: true},
		{name: "not a room channel", channel: "live:user:7:status", wantErr: true},
		{name: "empty room id", channel: "live:room::status", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			topic, key, err := channelToTopicAndKey(tt.channel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTopic, topic)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	payload := RoomStatusChangedPayload{RoomID: 42, Previous: "offline", Current: "live"}
	event, err := NewEvent(EventRoomStatusChanged, 42, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventRoomStatusChanged, event.Type)
	assert.Equal(t, int64(42), event.RoomID)
	assert.False(t, event.Timestamp.IsZero())

	var got RoomStatusChangedPayload
	require.NoError(t, event.UnmarshalPayload(&got))
	assert.Equal(t, payload, got)
}
