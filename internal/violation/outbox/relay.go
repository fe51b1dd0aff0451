// Package outbox relays persisted violation events from the outbox table to Kafka.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"dronewatch/internal/violation"
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 100
)

// Source is the outbox side of the violation store.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]violation.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher delivers one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Relay polls the outbox and publishes pending entries in creation order.
// Delivery is at-least-once: an entry published but not yet marked is sent
// again on the next poll.
type Relay struct {
	source    Source
	publisher Publisher
	clock     clock.Clock
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock sets the clock driving the poll loop.
func WithClock(c clock.Clock) Option {
	return func(r *Relay) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets how many entries one poll publishes at most.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a relay.
func New(source Source, publisher Publisher, logger *slog.Logger, opts ...Option) (*Relay, error) {
	if source == nil {
		return nil, errors.New("outbox source is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	r := &Relay{
		source:    source,
		publisher: publisher,
		clock:     clock.WallClock,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. Poll failures are logged and retried on
// the next interval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.interval, "batch_size", r.batchSize)
	for {
		if _, err := r.PublishPending(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox relay poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-r.clock.After(r.interval):
		}
	}
}

// PublishPending publishes one batch and marks the delivered entries. It
// stops at the first publish failure so later events never overtake it.
func (r *Relay) PublishPending(ctx context.Context) (int, error) {
	entries, err := r.source.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	var publishErr error
	for _, e := range entries {
		headers := map[string]string{
			"event_id":       e.ID.String(),
			"event_type":     e.EventType,
			"aggregate_type": e.AggregateType,
		}
		if err := r.publisher.Publish(ctx, e.AggregateID, e.Payload, headers); err != nil {
			publishErr = fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
			r.metrics.IncPublishFailures()
			break
		}
		published = append(published, e.ID)
	}

	if len(published) > 0 {
		if err := r.source.MarkPublished(ctx, published, r.clock.Now()); err != nil {
			return 0, errors.Join(publishErr, fmt.Errorf("mark published: %w", err))
		}
		r.metrics.AddPublished(len(published))
		r.logger.DebugContext(ctx, "outbox entries relayed", "count", len(published))
	}
	return len(published), publishErr
}
