package reconcile

import (
	"context"

	"dronewatch/internal/drone"
	"dronewatch/internal/owner"
	"dronewatch/internal/violation"
)

// Feed supplies the current drone positions.
type Feed interface {
	Check() error
	Fetch(ctx context.Context) ([]drone.Position, error)
}

// OwnerDirectory resolves an owner id to the owner's identity.
type OwnerDirectory interface {
	Check() error
	Lookup(ctx context.Context, ownerID string) (owner.Record, error)
}

// Store persists one tick's violations atomically.
type Store interface {
	Persist(ctx context.Context, records []violation.Record) ([]violation.Record, error)
}
