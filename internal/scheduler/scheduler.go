// Package scheduler fires the reconciliation job on a fixed interval with at
// most one tick in flight per job name.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/juju/clock"

	"dronewatch/internal/reconcile"
	"dronewatch/pkg/platform/sentinel"
)

const (
	// DefaultInterval is the time between ticks.
	DefaultInterval = 10 * time.Second

	lockGrace = 5 * time.Second
)

var (
	// ErrTickSkipped is returned by RunOnce when another tick holds the lock.
	ErrTickSkipped = fmt.Errorf("tick skipped: %w", sentinel.ErrConflict)

	// ErrTickPanicked is returned by RunOnce when the job panicked.
	ErrTickPanicked = errors.New("tick panicked")
)

// Job is one schedulable unit of work.
type Job interface {
	Run(ctx context.Context) reconcile.Result
}

// Scheduler runs Job every interval.
type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	lockTTL  time.Duration
	clock    clock.Clock
	locker   Locker
	logger   *slog.Logger
	metrics  *Metrics

	running sync.Mutex
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLockTTL sets the distributed lock expiry. It should exceed the tick
// timeout so the lock outlives a slow tick.
func WithLockTTL(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithTickTimeout derives the lock TTL from the job's tick timeout.
func WithTickTimeout(d time.Duration) Option {
	return WithLockTTL(d + lockGrace)
}

// WithClock sets the clock driving ticks.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocker adds a cross-process lock on top of the in-process one.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a scheduler for job. name keys the distributed lock.
func New(name string, job Job, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if name == "" {
		return nil, errors.New("job name is required")
	}
	if job == nil {
		return nil, errors.New("job is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	s := &Scheduler{
		name:     name,
		job:      job,
		interval: DefaultInterval,
		lockTTL:  reconcile.DefaultTimeout + lockGrace,
		clock:    clock.WallClock,
		logger:   logger.With("job", name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start fires a tick immediately and then every interval until ctx is
// cancelled. Ticks run in their own goroutine so a slow tick makes the next
// one skip rather than delaying the schedule. Start returns after the last
// in-flight tick has finished.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.InfoContext(ctx, "scheduler started", "interval", s.interval)
	defer s.logger.InfoContext(ctx, "scheduler stopped")

	s.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-s.clock.After(s.interval):
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.RunOnce(ctx)
	}()
}

// RunOnce executes one guarded tick. It returns ErrTickSkipped when a tick is
// already running here or elsewhere, and ErrTickPanicked when the job panicked.
func (s *Scheduler) RunOnce(ctx context.Context) (reconcile.Result, error) {
	if !s.running.TryLock() {
		s.metrics.IncrementSkipped("running")
		s.logger.WarnContext(ctx, "tick skipped: previous tick still running")
		return reconcile.Result{}, ErrTickSkipped
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, s.lockKey(), s.lockTTL)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.IncrementSkipped("locked")
				s.logger.InfoContext(ctx, "tick skipped: lock held by another instance")
				return reconcile.Result{}, ErrTickSkipped
			}
			s.metrics.IncrementSkipped("lock_error")
			s.logger.ErrorContext(ctx, "tick skipped: lock unavailable", "error", err)
			return reconcile.Result{}, fmt.Errorf("%w: %w", ErrTickSkipped, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "release tick lock", "error", err)
			}
		}()
	}

	return s.guarded(ctx)
}

func (s *Scheduler) guarded(ctx context.Context) (res reconcile.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncrementPanics()
			s.logger.ErrorContext(ctx, "tick panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			res, err = reconcile.Result{Outcome: reconcile.OutcomeAborted}, ErrTickPanicked
		}
	}()

	res = s.job.Run(ctx)
	s.logger.InfoContext(ctx, "tick finished",
		"run_id", res.RunID,
		"outcome", string(res.Outcome),
		"count", res.Count,
	)
	return res, nil
}

func (s *Scheduler) lockKey() string {
	return "dronewatch:lock:" + s.name
}
