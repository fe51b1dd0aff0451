package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	// registers the "postgres" database/sql driver
	_ "github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

// Option configures ConnectWithRetry.
type Option func(*connectOptions)

type connectOptions struct {
	clock clock.Clock
}

// WithClock sets the clock that paces retries.
func WithClock(c clock.Clock) Option {
	return func(o *connectOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// ConnectWithRetry opens a Postgres pool and pings it until it answers, the
// attempts run out or ctx is cancelled.
func ConnectWithRetry(ctx context.Context, dsn string, attempts int, delay time.Duration, logger *slog.Logger, opts ...Option) (*sql.DB, error) {
	o := connectOptions{clock: clock.WallClock}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := pingWithRetry(ctx, db.PingContext, attempts, delay, o.clock, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, ping func(context.Context) error, attempts int, delay time.Duration, clk clock.Clock, logger *slog.Logger) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			return ping(pingCtx)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.WarnContext(ctx, "postgres not ready",
				"attempt", attempt,
				"attempts", attempts,
				"error", err,
			)
		},
		Attempts: attempts,
		Delay:    delay,
		Clock:    clk,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if retry.IsRetryStopped(err) && ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("db connect failed after %d attempts: %w", attempts, retry.LastError(err))
}
