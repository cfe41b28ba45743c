package pubsub

import (
	"context"

	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

// LogPublisher writes events to the context logger instead of a broker.
type LogPublisher struct{}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the event.
func (LogPublisher) Publish(ctx context.Context, channel string, event *Event) error {
	l := log.Ctx(ctx)
	l.Info().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int64(log.FieldRoomID, event.RoomID).
		RawJSON("payload", event.Payload).
		Msg("event published")
	return nil
}

// Close is a no-op.
func (LogPublisher) Close() error { return nil }
