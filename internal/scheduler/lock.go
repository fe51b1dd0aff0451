package scheduler

import (
	"context"
	"time"
)

// Locker coordinates ticks across processes. Acquire returns an error
// wrapping sentinel.ErrConflict when another holder owns key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
