package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

// ErrPassInProgress is returned by RunOnce while another pass is running.
var ErrPassInProgress = errors.New("sync pass already in progress")

const defaultInterval = 30 * time.Second

// SchedulerConfig controls periodic passes.
type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithArchiver stores every finished report.
func WithArchiver(a Archiver) SchedulerOption {
	return func(s *Scheduler) {
		s.archiver = a
	}
}

// Scheduler runs the engine on a ticker and forwards each pass's changes
// to a Notifier. Passes never overlap.
type Scheduler struct {
	engine   *Engine
	notifier Notifier
	archiver Archiver
	cfg      SchedulerConfig

	running sync.Mutex
	lastMu  sync.RWMutex
	last    *Report

	quit     chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewScheduler creates a new Scheduler. notifier may be nil.
func NewScheduler(engine *Engine, notifier Notifier, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	s := &Scheduler{
		engine:   engine,
		notifier: notifier,
		cfg:      cfg,
		quit:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the scheduler in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the scheduler to stop and returns immediately. A pass in
// flight is cancelled at its next chunk boundary.
// Call Done() to wait for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// Done returns a channel that is closed when the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

// LastReport returns the report of the most recent pass, or nil.
func (s *Scheduler) LastReport() *Report {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// RunOnce runs a single pass unless one is already running.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.running.Unlock()
	return s.pass(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.cfg.RunOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); errors.Is(err, ErrPassInProgress) {
		l := log.Ctx(ctx)
		l.Debug().Msg("scheduler: previous pass still running, skipping tick")
	}
}

// pass runs the engine and hands the changes on. Changes persisted before
// a store failure or cancellation are still notified.
func (s *Scheduler) pass(ctx context.Context) (*Report, error) {
	report, err := s.engine.RunPass(ctx)

	s.lastMu.Lock()
	s.last = report
	s.lastMu.Unlock()

	hctx := log.WithPass(context.WithoutCancel(ctx), report.PassID)
	l := log.Ctx(hctx)

	if s.notifier != nil && len(report.Changes) > 0 {
		if nerr := s.notifier.NotifyChanges(hctx, report.ChangeList()); nerr != nil {
			l.Error().Err(nerr).Int("changed", len(report.Changes)).Msg("scheduler: failed to notify changes")
		}
	}
	if s.archiver != nil && report.StaleRooms > 0 {
		if aerr := s.archiver.Archive(hctx, report); aerr != nil {
			l.Warn().Err(aerr).Msg("scheduler: failed to archive report")
		}
	}
	return report, err
}
