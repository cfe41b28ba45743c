package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler"
	"github.com/Avimitin/bili-live-notify-bot/pkg/storage"
)

func newArchive(t *testing.T) *ReportArchive {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return NewReportArchive(store, "reports")
}

func TestArchiveAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := newArchive(t)

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := &reconciler.Report{
		PassID:           "4f1c",
		StartedAt:        started,
		FinishedAt:       started.Add(2 * time.Second),
		StaleRooms:       3,
		Batches:          2,
		BatchesAttempted: 2,
		Changes: map[int64]reconciler.Change{
			1: {RoomID: 1, Previous: domain.LiveStatusOffline, Current: domain.LiveStatusLive},
		},
		DecodeFailures: []reconciler.RoomFailure{{RoomID: 4, Reason: "unknown live status code: 7"}},
	}

	require.NoError(t, a.Archive(ctx, report))

	got, err := a.Load(ctx, "4f1c")
	require.NoError(t, err)
	assert.Equal(t, report.PassID, got.PassID)
	assert.True(t, report.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, report.Changes, got.Changes)
	assert.Equal(t, []int64{1}, got.ChangedRoomIDs())
	assert.Equal(t, report.DecodeFailures, got.DecodeFailures)
}

func TestLoad_Unknown(t *testing.T) {
	t.Parallel()

	_, err := newArchive(t).Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
