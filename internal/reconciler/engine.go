// Package reconciler keeps persisted room status in step with the
// streaming platform and reports the rooms whose status changed.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Avimitin/bili-live-notify-bot/internal/batch"
	"github.com/Avimitin/bili-live-notify-bot/internal/domain"
	"github.com/Avimitin/bili-live-notify-bot/internal/repository"
	"github.com/Avimitin/bili-live-notify-bot/internal/telemetry"
	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

var (
	// ErrFetchBatchFailed wraps the cause of a failed remote batch.
	ErrFetchBatchFailed = errors.New("status batch fetch failed")

	// ErrInvalidOptions is returned by NewEngine for unusable settings.
	ErrInvalidOptions = errors.New("invalid sync options")
)

// Options tune a sync pass.
type Options struct {
	StalenessThreshold time.Duration
	MaxBatchSize       int
	Parallelism        int
}

// Validate reports the first unusable setting.
func (o Options) Validate() error {
	switch {
	case o.StalenessThreshold <= 0:
		return fmt.Errorf("%w: staleness threshold must be positive, got %s", ErrInvalidOptions, o.StalenessThreshold)
	case o.MaxBatchSize < 1 || o.MaxBatchSize > batch.MaxPlatformBatchSize:
		return fmt.Errorf("%w: max batch size must be in [1, %d], got %d", ErrInvalidOptions, batch.MaxPlatformBatchSize, o.MaxBatchSize)
	case o.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be at least 1, got %d", ErrInvalidOptions, o.Parallelism)
	}
	return nil
}

// Engine runs synchronization passes.
type Engine struct {
	repo    repository.RoomRepository
	fetcher StatusFetcher
	opts    Options
	metrics *telemetry.SyncMetrics
}

// NewEngine creates a new Engine. metrics may be nil.
func NewEngine(repo repository.RoomRepository, fetcher StatusFetcher, opts Options, metrics *telemetry.SyncMetrics) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		repo:    repo,
		fetcher: fetcher,
		opts:    opts,
		metrics: metrics,
	}, nil
}

// RunPass selects stale rooms, fetches their remote status in batches and
// reconciles each room against the store.
//
// The returned report is never nil. Fetch and decode failures and rooms
// that disappeared from the store are recorded in the report and do not
// stop the pass. A store failure aborts the pass and is returned as an
// error together with whatever was reconciled before it.
//
// Cancelling ctx stops the pass at chunk boundaries: chunks already in
// flight finish, no new chunk starts, and the report has Interrupted set.
// Cancellation is never reported as an error.
func (e *Engine) RunPass(ctx context.Context) (*Report, error) {
	passID := uuid.New().String()
	ctx = log.WithPass(ctx, passID)
	l := log.Ctx(ctx)

	col := newCollector(passID, time.Now())

	stale, err := e.repo.GetStale(ctx, e.opts.StalenessThreshold)
	if err != nil {
		if ctx.Err() != nil {
			l.Warn().Err(err).Msg("sync pass cancelled before selection")
			report := col.finish(time.Now(), true)
			e.record(ctx, report, telemetry.OutcomeInterrupted)
			return report, nil
		}
		report := col.finish(time.Now(), false)
		e.record(ctx, report, telemetry.OutcomeFailed)
		return report, fmt.Errorf("failed to select stale rooms: %w", err)
	}
	if len(stale) == 0 {
		l.Debug().Msg("no stale rooms")
		report := col.finish(time.Now(), false)
		e.record(ctx, report, telemetry.OutcomeCompleted)
		return report, nil
	}

	chunks := batch.Chunk(stale, e.opts.MaxBatchSize)
	col.planned(len(stale), len(chunks))
	l.Info().Int(log.FieldStaleCount, len(stale)).Int("batches", len(chunks)).Msg("sync pass started")

	// Chunk work runs detached from cancellation so an in-flight chunk
	// always completes; g's context only gates starting new chunks.
	work := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(e.opts.Parallelism))

	for i, ids := range chunks {
		if gctx.Err() != nil {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		if gctx.Err() != nil {
			sem.Release(1)
			break
		}

		col.attempted()
		g.Go(func() error {
			defer sem.Release(1)
			return e.processChunk(work, i, ids, col)
		})
	}

	err = g.Wait()
	report := col.finish(time.Now(), ctx.Err() != nil && col.skippedBatches())

	level, outcome := zerolog.InfoLevel, telemetry.OutcomeCompleted
	switch {
	case err != nil:
		level, outcome = zerolog.ErrorLevel, telemetry.OutcomeFailed
	case report.Interrupted:
		level, outcome = zerolog.WarnLevel, telemetry.OutcomeInterrupted
	}
	l.WithLevel(level).Err(err).
		Int("changed", len(report.Changes)).
		Int("fetch_failures", len(report.FetchFailures)).
		Int("decode_failures", len(report.DecodeFailures)).
		Int("not_found", len(report.NotFound)).
		Int("batches_attempted", report.BatchesAttempted).
		Dur("duration", report.Duration()).
		Msg("sync pass finished")

	e.record(ctx, report, outcome)
	return report, err
}

// processChunk fetches one chunk and reconciles every room in it. It only
// returns an error for store failures, which abort the pass.
func (e *Engine) processChunk(ctx context.Context, index int, ids []int64, col *collector) error {
	l := log.Ctx(ctx).With().Int(log.FieldBatchIndex, index).Int(log.FieldBatchSize, len(ids)).Logger()

	statuses, err := e.fetcher.FetchStatuses(ctx, ids)
	if err == nil {
		err = checkComplete(ids, statuses)
	}
	if err != nil {
		l.Warn().Err(err).Msg("status batch failed, rooms stay stale")
		col.batchFailed(ids, fmt.Errorf("%w: %w", ErrFetchBatchFailed, err))
		return nil
	}

	for _, id := range ids {
		remote := statuses[id]

		status, err := domain.ParseLiveStatus(remote.Code)
		if err != nil {
			l.Warn().Err(err).Int64(log.FieldRoomID, id).Int(log.FieldRawStatus, remote.Code).Msg("undecodable live status, room stays stale")
			col.decodeFailed(id, err)
			continue
		}

		tr, err := e.repo.CompareAndSet(ctx, id, status)
		if errors.Is(err, repository.ErrRoomNotFound) {
			l.Warn().Int64(log.FieldRoomID, id).Msg("room vanished from store during pass")
			col.notFound(id, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to reconcile room %d: %w", id, err)
		}

		if tr.Changed() {
			l.Info().
				Int64(log.FieldRoomID, id).
				Stringer(log.FieldPrevStatus, tr.Previous).
				Stringer(log.FieldLiveStatus, tr.Current).
				Msg("room status changed")
			col.changed(id, tr, remote)
		}
	}
	return nil
}

// checkComplete enforces the batch-atomic fetch contract.
func checkComplete(ids []int64, statuses map[int64]domain.RemoteStatus) error {
	for _, id := range ids {
		if _, ok := statuses[id]; !ok {
			return fmt.Errorf("room %d missing from batch response", id)
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, r *Report, outcome string) {
	e.metrics.RecordPass(ctx, r.Duration(), outcome, len(r.Changes), len(r.FetchFailures), len(r.DecodeFailures))
}
