package reconciler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler"
	"github.com/Avimitin/bili-live-notify-bot/internal/reconciler/mocks"
)

func TestScheduler_RunOnceNotifiesChanges(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	repo := newMemRepo(map[int64]domain.LiveStatus{1: domain.LiveStatusOffline, 2: domain.LiveStatusOffline})
	fetcher := mocks.NewMockStatusFetcher(ctrl)
	fetcher.EXPECT().FetchStatuses(gomock.Any(), []int64{1, 2}).Return(remote(map[int64]int{1: 0, 2: 1}), nil)

	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().NotifyChanges(gomock.Any(), []reconciler.Change{{
		RoomID:   2,
		Previous: domain.LiveStatusOffline,
		Current:  domain.LiveStatusLive,
		Remote:   domain.RemoteStatus{Code: 1},
	}}).Return(nil)

	s := reconciler.NewScheduler(newEngine(t, repo, fetcher, opts(10, 1)), notifier, reconciler.SchedulerConfig{})

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, report.ChangedRoomIDs())
	assert.Same(t, report, s.LastReport())
}

func TestScheduler_NoNotificationWithoutChanges(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	repo := newMemRepo(map[int64]domain.LiveStatus{1: domain.LiveStatusLive})
	fetcher := mocks.NewMockStatusFetcher(ctrl)
	fetcher.EXPECT().FetchStatuses(gomock.Any(), []int64{1}).Return(remote(map[int64]int{1: 1}), nil)
	notifier := mocks.NewMockNotifier(ctrl)

	s := reconciler.NewScheduler(newEngine(t, repo, fetcher, opts(10, 1)), notifier, reconciler.SchedulerConfig{})
	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestScheduler_NotifierErrorDoesNotFailPass(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	repo := newMemRepo(map[int64]domain.LiveStatus{1: domain.LiveStatusOffline})
	fetcher := mocks.NewMockStatusFetcher(ctrl)
	fetcher.EXPECT().FetchStatuses(gomock.Any(), []int64{1}).Return(remote(map[int64]int{1: 1}), nil)
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().NotifyChanges(gomock.Any(), gomock.Len(1)).Return(errors.New("broker down"))

	s := reconciler.NewScheduler(newEngine(t, repo, fetcher, opts(10, 1)), notifier, reconciler.SchedulerConfig{})
	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Changes, 1)
}

func TestScheduler_RejectsOverlappingPass(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	repo := newMemRepo(map[int64]domain.LiveStatus{1: domain.LiveStatusOffline})
	entered := make(chan struct{})
	release := make(chan struct{})
	fetcher := mocks.NewMockStatusFetcher(ctrl)
	fetcher.EXPECT().FetchStatuses(gomock.Any(), []int64{1}).
		DoAndReturn(func(context.Context, []int64) (map[int64]domain.RemoteStatus, error) {
			close(entered)
			<-release
			return remote(map[int64]int{1: 0}), nil
		})

	s := reconciler.NewScheduler(newEngine(t, repo, fetcher, opts(10, 1)), nil, reconciler.SchedulerConfig{})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		errCh <- err
	}()
	<-entered

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, reconciler.ErrPassInProgress)

	close(release)
	require.NoError(t, <-errCh)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	repo := newMemRepo(map[int64]domain.LiveStatus{1: domain.LiveStatusOffline})
	ran := make(chan struct{}, 1)
	fetcher := mocks.NewMockStatusFetcher(ctrl)
	fetcher.EXPECT().FetchStatuses(gomock.Any(), []int64{1}).
		DoAndReturn(func(context.Context, []int64) (map[int64]domain.RemoteStatus, error) {
			select {
			case ran <- struct{}{}:
			default:
			}
			return remote(map[int64]int{1: 1}), nil
		}).MinTimes(1)

	s := reconciler.NewScheduler(newEngine(t, repo, fetcher, opts(10, 1)), nil, reconciler.SchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	})
	s.Start(context.Background())

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("pass on start did not run")
	}

	s.Stop()
	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, domain.LiveStatusLive, repo.get(1))
}

func TestScheduler_ArchivesReports(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	repo := newMemRepo(map[int64]domain.LiveStatus{1: domain.LiveStatusOffline})
	fetcher := mocks.NewMockStatusFetcher(ctrl)
	fetcher.EXPECT().FetchStatuses(gomock.Any(), []int64{1}).Return(remote(map[int64]int{1: 0}), nil)

	var archived *reconciler.Report
	archiver := mocks.NewMockArchiver(ctrl)
	archiver.EXPECT().Archive(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *reconciler.Report) error {
			archived = r
			return errors.New("bucket gone")
		})

	s := reconciler.NewScheduler(newEngine(t, repo, fetcher, opts(10, 1)), nil, reconciler.SchedulerConfig{},
		reconciler.WithArchiver(archiver))

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err, "archive failures are logged only")
	assert.Same(t, report, archived)
}

func TestScheduler_SkipsArchiveForIdlePass(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	archiver := mocks.NewMockArchiver(ctrl)
	s := reconciler.NewScheduler(newEngine(t, newMemRepo(nil), mocks.NewMockStatusFetcher(ctrl), opts(10, 1)), nil,
		reconciler.SchedulerConfig{}, reconciler.WithArchiver(archiver))

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
}
