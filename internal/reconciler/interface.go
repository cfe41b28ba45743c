package reconciler

import (
	"context"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_reconciler.go -package=mocks -source=interface.go StatusFetcher,Notifier,Archiver

// StatusFetcher resolves the current remote status of a batch of rooms.
// The call is batch-atomic: it either returns an entry for every
// requested id or fails as a whole.
type StatusFetcher interface {
	FetchStatuses(ctx context.Context, ids []int64) (map[int64]domain.RemoteStatus, error)
}

// Notifier receives the changed rooms of every pass.
type Notifier interface {
	NotifyChanges(ctx context.Context, changes []Change) error
}

// Archiver keeps finished pass reports.
type Archiver interface {
	Archive(ctx context.Context, report *Report) error
}
