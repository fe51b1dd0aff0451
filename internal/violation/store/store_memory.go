package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dronewatch/internal/violation"
	"dronewatch/pkg/requestcontext"
)

// InMemoryStore keeps violations in a mutex-guarded slice. It is used when no
// DATABASE_URL is configured and in tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []violation.Record
	nextID  int64
	outbox  []violation.OutboxEntry
	relay   bool
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemoryOutbox records an outbox entry for every persisted violation.
func WithMemoryOutbox() MemoryOption {
	return func(s *InMemoryStore) {
		s.relay = true
	}
}

// NewInMemory creates an empty in-memory store.
func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{nextID: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema is a no-op.
func (s *InMemoryStore) EnsureSchema(context.Context) error {
	return nil
}

// Persist appends the batch atomically: either every record becomes visible
// or none does.
func (s *InMemoryStore) Persist(ctx context.Context, records []violation.Record) ([]violation.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]violation.Record, len(records))
	var entries []violation.OutboxEntry
	id := s.nextID
	for i, rec := range records {
		rec.ID = id
		id++
		saved[i] = rec
		if s.relay {
			entry, err := violation.NewOutboxEntry(rec, requestcontext.Now(ctx))
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	s.nextID = id
	s.records = append(s.records, saved...)
	s.outbox = append(s.outbox, entries...)
	return slices.Clone(saved), nil
}

// QuerySince returns records detected at or after cutoff, oldest first.
func (s *InMemoryStore) QuerySince(_ context.Context, cutoff time.Time) ([]violation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]violation.Record, 0)
	for _, rec := range s.records {
		if !rec.Timestamp.Before(cutoff) {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b violation.Record) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// Count returns the number of stored violations.
func (s *InMemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// FetchPending returns up to limit unpublished outbox entries, oldest first.
func (s *InMemoryStore) FetchPending(_ context.Context, limit int) ([]violation.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []violation.OutboxEntry
	for _, e := range s.outbox {
		if len(out) >= limit {
			break
		}
		if e.PublishedAt == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkPublished stamps the given outbox entries as relayed.
func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].PublishedAt == nil && slices.Contains(ids, s.outbox[i].ID) {
			published := at
			s.outbox[i].PublishedAt = &published
		}
	}
	return nil
}
