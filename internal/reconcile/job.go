// Package reconcile runs one fetch-evaluate-enrich-persist pass over the
// drone feed per call.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dronewatch/internal/drone"
	"dronewatch/internal/geofence"
	"dronewatch/internal/reconcile/metrics"
	"dronewatch/internal/upstream"
	"dronewatch/pkg/requestcontext"
)

const (
	// DefaultTimeout bounds a whole tick.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is how many owner lookups run at once.
	DefaultConcurrency = 4

	tracerName = "dronewatch/reconcile"
)

// Job is the reconciliation pipeline. A Job is safe to Run from one goroutine
// at a time; the scheduler guarantees that.
type Job struct {
	feed        Feed
	owners      OwnerDirectory
	store       Store
	zone        geofence.Zone
	clock       clock.Clock
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// Option configures a Job.
type Option func(*Job)

// WithZone sets the no-fly zone.
func WithZone(z geofence.Zone) Option {
	return func(j *Job) {
		j.zone = geofence.NewZone(z.Radius)
	}
}

// WithClock sets the clock used for detection timestamps and tick timing.
func WithClock(c clock.Clock) Option {
	return func(j *Job) {
		if c != nil {
			j.clock = c
		}
	}
}

// WithTimeout bounds a whole tick.
func WithTimeout(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.timeout = d
		}
	}
}

// WithConcurrency sets the owner lookup pool size. 1 runs lookups sequentially.
func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(j *Job) {
		if t != nil {
			j.tracer = t
		}
	}
}

// New creates a reconciliation job.
func New(feed Feed, owners OwnerDirectory, store Store, logger *slog.Logger, opts ...Option) (*Job, error) {
	if feed == nil {
		return nil, errors.New("drone feed is required")
	}
	if owners == nil {
		return nil, errors.New("owner directory is required")
	}
	if store == nil {
		return nil, errors.New("violation store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	j := &Job{
		feed:        feed,
		owners:      owners,
		store:       store,
		zone:        geofence.NewZone(geofence.DefaultRadius),
		clock:       clock.WallClock,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run executes one tick. It never returns an error: every failure is logged
// and folded into the Result.
func (j *Job) Run(ctx context.Context) Result {
	runID := uuid.NewString()
	ctx = requestcontext.WithRunID(ctx, runID)
	logger := j.logger.With("run_id", runID)

	ctx, span := j.tracer.Start(ctx, "reconcile.tick", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := j.clock.Now()
	res := j.run(ctx, logger, runID)

	j.metrics.IncrementTick(string(res.Outcome))
	j.metrics.ObserveTick(j.clock.Now().Sub(start))
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("violations", res.Count),
	)
	if res.Outcome == OutcomeAborted {
		span.SetStatus(codes.Error, "tick aborted")
	}
	return res
}

func (j *Job) run(ctx context.Context, logger *slog.Logger, runID string) Result {
	if err := errors.Join(j.feed.Check(), j.owners.Check()); err != nil {
		logger.ErrorContext(ctx, "reconcile aborted: missing configuration", "error", err)
		return aborted(runID)
	}

	positions, err := j.feed.Fetch(ctx)
	if err != nil {
		logger.WarnContext(ctx, "no drone data this tick",
			"category", upstream.CategoryOf(err),
			"error", err,
		)
		return completed(runID, 0)
	}
	if len(positions) == 0 {
		logger.InfoContext(ctx, "drone feed returned no drones")
		return completed(runID, 0)
	}

	candidates := j.evaluate(ctx, logger, positions)
	if len(candidates) == 0 {
		logger.InfoContext(ctx, "no violations detected", "drones", len(positions))
		return completed(runID, 0)
	}

	records := j.enrich(ctx, logger, candidates)
	if len(records) == 0 {
		logger.WarnContext(ctx, "no violations enriched", "candidates", len(candidates))
		return completed(runID, 0)
	}

	saved, err := j.store.Persist(ctx, records)
	if err != nil {
		logger.ErrorContext(ctx, "persist violations failed; batch rolled back",
			"records", len(records),
			"error", err,
		)
		return aborted(runID)
	}

	j.metrics.AddViolations(len(saved))
	logger.InfoContext(ctx, "violations recorded",
		"count", len(saved),
		"candidates", len(candidates),
		"drones", len(positions),
	)
	return completed(runID, len(saved))
}

// evaluate keeps violating positions in feed order.
func (j *Job) evaluate(ctx context.Context, logger *slog.Logger, positions []drone.Position) []drone.Position {
	var candidates []drone.Position
	for _, p := range positions {
		inside := j.zone.Contains(p.X, p.Y)
		j.metrics.IncrementEvaluated(inside)
		if !inside {
			logger.DebugContext(ctx, "drone outside no-fly zone",
				"drone_id", p.DroneID,
				"owner_id", p.OwnerID.String(),
				"x", p.X, "y", p.Y, "z", p.Z,
			)
			continue
		}
		logger.InfoContext(ctx, "drone inside no-fly zone",
			"drone_id", p.DroneID,
			"owner_id", p.OwnerID.String(),
			"distance", j.zone.Distance(p.X, p.Y),
		)
		candidates = append(candidates, p)
	}
	return candidates
}
