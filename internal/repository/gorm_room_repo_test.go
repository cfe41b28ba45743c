package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/repository"
	"github.com/Avimitin/bili-live-notify-bot/pkg/database"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestRepo(t *testing.T) (*repository.GormRoomRepository, *testClock) {
	t.Helper()
	return newPooledTestRepo(t, 1)
}

func newPooledTestRepo(t *testing.T, maxOpenConns int) (*repository.GormRoomRepository, *testClock) {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "rooms.db"),
		MaxOpenConns: maxOpenConns,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.RoomModel{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return repository.NewGormRoomRepository(db, repository.WithClock(clock.Now)), clock
}

func register(t *testing.T, repo *repository.GormRoomRepository, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		created, err := repo.Register(context.Background(), id, "")
		require.NoError(t, err)
		require.True(t, created)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	created, err := repo.Register(ctx, 7688602, "streamer")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Register(ctx, 7688602, "other name")
	require.NoError(t, err)
	assert.False(t, created, "second registration is a no-op")

	rec, err := repo.GetByRoomID(ctx, 7688602)
	require.NoError(t, err)
	assert.Equal(t, int64(7688602), rec.RoomID)
	assert.Equal(t, domain.LiveStatusOffline, rec.Status)
	assert.Equal(t, "streamer", rec.DisplayName)
	assert.Nil(t, rec.LastRefreshedAt)
	assert.NotZero(t, rec.LocalID)
}

func TestGetByRoomID_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newTestRepo(t)

	_, err := repo.GetByRoomID(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestCompareAndSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		initial     domain.LiveStatus
		next        domain.LiveStatus
		wantChanged bool
	}{
		{name: "same status", initial: domain.LiveStatusOffline, next: domain.LiveStatusOffline},
		{name: "offline to live", initial: domain.LiveStatusOffline, next: domain.LiveStatusLive, wantChanged: true},
		{name: "live to replay", initial: domain.LiveStatusLive, next: domain.LiveStatusReplay, wantChanged: true},
		{name: "replay to replay", initial: domain.LiveStatusReplay, next: domain.LiveStatusReplay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			repo, clock := newTestRepo(t)
			register(t, repo, 100)

			start := clock.Now()
			_, err := repo.CompareAndSet(ctx, 100, tt.initial)
			require.NoError(t, err)

			clock.Set(start.Add(time.Minute))
			tr, err := repo.CompareAndSet(ctx, 100, tt.next)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, tr.Changed())
			assert.Equal(t, tt.initial, tr.Previous)
			assert.Equal(t, tt.next, tr.Current)

			rec, err := repo.GetByRoomID(ctx, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.next, rec.Status)
			require.NotNil(t, rec.LastRefreshedAt)
			assert.True(t, rec.LastRefreshedAt.Equal(start.Add(time.Minute)), "refresh time advances even without a change")
		})
	}
}

func TestCompareAndSet_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newTestRepo(t)

	_, err := repo.CompareAndSet(context.Background(), 404, domain.LiveStatusLive)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.False(t, errors.Is(err, repository.ErrStoreUnavailable))
}

func TestCompareAndSet_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	repo, _ := newTestRepo(t)
	register(t, repo, 1)

	_, err := repo.CompareAndSet(context.Background(), 1, domain.LiveStatus(9))
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)
}

func TestCompareAndSet_RefreshTimeNeverMovesBackward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, clock := newTestRepo(t)
	register(t, repo, 1)

	start := clock.Now()
	_, err := repo.CompareAndSet(ctx, 1, domain.LiveStatusLive)
	require.NoError(t, err)

	clock.Set(start.Add(-time.Hour))
	_, err = repo.CompareAndSet(ctx, 1, domain.LiveStatusLive)
	require.NoError(t, err)

	rec, err := repo.GetByRoomID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec.LastRefreshedAt)
	assert.True(t, rec.LastRefreshedAt.Equal(start))
}

func TestCompareAndSet_ConcurrentWritersSameRoom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	register(t, repo, 1)

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := repo.CompareAndSet(ctx, 1, domain.LiveStatusLive)
			assert.NoError(t, err)
			if tr.Changed() {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changed, "exactly one writer observes the offline to live transition")
}

func TestCompareAndSet_PooledWritersDisjointRooms(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newPooledTestRepo(t, 20)

	const (
		workers = 4
		perWork = 50
	)
	for id := int64(1); id <= workers*perWork; id++ {
		register(t, repo, id)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				id := int64(w*perWork + i + 1)
				if _, err := repo.CompareAndSet(ctx, id, domain.LiveStatusLive); err != nil {
					mu.Lock()
					failed = append(failed, err)
					mu.Unlock()
				}
			}
		}(w)
	}
	wg.Wait()

	require.Empty(t, failed)
	for id := int64(1); id <= workers*perWork; id++ {
		rec, err := repo.GetByRoomID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.LiveStatusLive, rec.Status, "room %d", id)
		assert.NotNil(t, rec.LastRefreshedAt, "room %d", id)
	}
}

func TestCancelledContextIsNotStoreFailure(t *testing.T) {
	t.Parallel()
	repo, _ := newTestRepo(t)
	register(t, repo, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "GetStale",
			call: func() error {
				_, err := repo.GetStale(ctx, time.Minute)
				return err
			},
		},
		{
			name: "CompareAndSet",
			call: func() error {
				_, err := repo.CompareAndSet(ctx, 1, domain.LiveStatusLive)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
			assert.NotErrorIs(t, err, repository.ErrStoreUnavailable)
		})
	}

	rec, err := repo.GetByRoomID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LiveStatusOffline, rec.Status)
	assert.Nil(t, rec.LastRefreshedAt)
}

func TestGetStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, clock := newTestRepo(t)
	register(t, repo, 1, 2, 3, 4)

	start := clock.Now()

	// 1 refreshed long ago, 2 refreshed recently, 3 refreshed exactly at
	// the edge of the window, 4 never refreshed.
	_, err := repo.CompareAndSet(ctx, 1, domain.LiveStatusLive)
	require.NoError(t, err)

	clock.Set(start.Add(8 * time.Minute))
	_, err = repo.CompareAndSet(ctx, 3, domain.LiveStatusOffline)
	require.NoError(t, err)

	clock.Set(start.Add(9 * time.Minute))
	_, err = repo.CompareAndSet(ctx, 2, domain.LiveStatusLive)
	require.NoError(t, err)

	clock.Set(start.Add(10 * time.Minute))
	ids, err := repo.GetStale(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)

	ids, err = repo.GetStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids, "only never-refreshed rooms are stale inside a wide window")
}

func TestGetStale_Empty(t *testing.T) {
	t.Parallel()
	repo, _ := newTestRepo(t)

	ids, err := repo.GetStale(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
