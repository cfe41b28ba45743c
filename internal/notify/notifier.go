// Package notify turns reconciled status changes into audit entries and
// published room.status_changed events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Avimitin/bili-live-notify-bot/internal/audit"
	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
	"github.com/Avimitin/bili-live-notify-bot/pkg/pubsub"
)

// EventNotifier publishes one event per changed room.
type EventNotifier struct {
	publisher pubsub.Publisher
	now       func() time.Time
}

// NewEventNotifier creates a new EventNotifier.
func NewEventNotifier(publisher pubsub.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher, now: time.Now}
}

// NotifyChanges audits and publishes every change. A failed publish does
// not stop the remaining ones; all failures are joined in the result.
func (n *EventNotifier) NotifyChanges(ctx context.Context, changes []reconciler.Change) error {
	l := log.Ctx(ctx)
	changedAt := n.now().UTC()

	var errs []error
	for _, c := range changes {
		audit.LogTransition(ctx, c.RoomID, domain.Transition{Previous: c.Previous, Current: c.Current})

		event, err := pubsub.NewEvent(pubsub.EventRoomStatusChanged, c.RoomID, payloadFor(c, changedAt))
		if err != nil {
			errs = append(errs, fmt.Errorf("room %d: %w", c.RoomID, err))
			continue
		}

		if err := n.publisher.Publish(ctx, pubsub.RoomStatusChannel(c.RoomID), event); err != nil {
			l.Error().Err(err).Int64(log.FieldRoomID, c.RoomID).Msg("failed to publish status change")
			errs = append(errs, fmt.Errorf("room %d: %w", c.RoomID, err))
		}
	}
	return errors.Join(errs...)
}

func payloadFor(c reconciler.Change, changedAt time.Time) pubsub.RoomStatusChangedPayload {
	return pubsub.RoomStatusChangedPayload{
		RoomID:      c.RoomID,
		Previous:    c.Previous.String(),
		Current:     c.Current.String(),
		DisplayName: c.Remote.DisplayName,
		Title:       c.Remote.Title,
		AreaName:    c.Remote.AreaName,
		Tags:        c.Remote.Tags,
		CoverURL:    c.Remote.CoverURL,
		Online:      c.Remote.Online,
		ChangedAt:   changedAt,
	}
}

var _ reconciler.Notifier = (*EventNotifier)(nil)
