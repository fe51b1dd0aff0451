package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dronewatch/internal/violation"
	txcontext "dronewatch/pkg/platform/tx"
	"dronewatch/pkg/requestcontext"
)

const schema = `
CREATE TABLE IF NOT EXISTS violations (
	id                  BIGSERIAL PRIMARY KEY,
	timestamp           TIMESTAMPTZ NOT NULL,
	drone_id            TEXT NOT NULL,
	position_x          DOUBLE PRECISION NOT NULL,
	position_y          DOUBLE PRECISION NOT NULL,
	position_z          DOUBLE PRECISION NOT NULL,
	owner_first_name    TEXT NOT NULL,
	owner_last_name     TEXT NOT NULL,
	owner_ssn           TEXT NOT NULL,
	owner_phone         TEXT NOT NULL,
	owner_email         TEXT NOT NULL,
	owner_purchase_date TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_violations_timestamp ON violations (timestamp);

CREATE TABLE IF NOT EXISTS violation_outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_violation_outbox_pending
	ON violation_outbox (created_at) WHERE published_at IS NULL;
`

const recordColumns = `id, timestamp, drone_id, position_x, position_y, position_z,
	owner_first_name, owner_last_name, owner_ssn, owner_phone, owner_email, owner_purchase_date`

// PostgresStore persists violations in PostgreSQL. When the outbox is enabled
// every inserted violation also gets a violation_outbox row in the same
// transaction.
type PostgresStore struct {
	db     *sql.DB
	outbox bool
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresOutbox enables outbox rows for persisted violations.
func WithPostgresOutbox() PostgresOption {
	return func(s *PostgresStore) {
		s.outbox = true
	}
}

// NewPostgres constructs a PostgreSQL-backed violation store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the violation tables and indexes if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure violation schema: %w", err)
	}
	return nil
}

// Persist inserts all records in one transaction and returns them with their
// assigned ids. Any failure rolls back the whole batch.
func (s *PostgresStore) Persist(ctx context.Context, records []violation.Record) ([]violation.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var saved []violation.Record
	err := s.runInTx(ctx, func(ctx context.Context) error {
		saved = make([]violation.Record, 0, len(records))
		for _, rec := range records {
			stored, err := s.insert(ctx, rec)
			if err != nil {
				return err
			}
			if s.outbox {
				if err := s.appendOutbox(ctx, stored); err != nil {
					return err
				}
			}
			saved = append(saved, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// runInTx reuses a transaction already carried by ctx, otherwise it opens one
// and commits only if fn succeeds.
func (s *PostgresStore) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin violation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit violation tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, rec violation.Record) (violation.Record, error) {
	query := `
		INSERT INTO violations (
			timestamp, drone_id, position_x, position_y, position_z,
			owner_first_name, owner_last_name, owner_ssn, owner_phone,
			owner_email, owner_purchase_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		rec.Timestamp,
		rec.DroneID,
		rec.PositionX,
		rec.PositionY,
		rec.PositionZ,
		rec.OwnerFirstName,
		rec.OwnerLastName,
		rec.OwnerSSN,
		rec.OwnerPhone,
		rec.OwnerEmail,
		rec.OwnerPurchaseDate,
	).Scan(&rec.ID)
	if err != nil {
		return violation.Record{}, fmt.Errorf("insert violation: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) appendOutbox(ctx context.Context, rec violation.Record) error {
	entry, err := violation.NewOutboxEntry(rec, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO violation_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Payload,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// QuerySince returns records detected at or after cutoff, oldest first.
func (s *PostgresStore) QuerySince(ctx context.Context, cutoff time.Time) ([]violation.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM violations
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	records := make([]violation.Record, 0)
	for rows.Next() {
		var rec violation.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.DroneID,
			&rec.PositionX,
			&rec.PositionY,
			&rec.PositionZ,
			&rec.OwnerFirstName,
			&rec.OwnerLastName,
			&rec.OwnerSSN,
			&rec.OwnerPhone,
			&rec.OwnerEmail,
			&rec.OwnerPurchaseDate,
		); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return records, nil
}

// Count returns the number of stored violations.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return n, nil
}

// FetchPending returns up to limit unpublished outbox entries, oldest first.
func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]violation.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM violation_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []violation.OutboxEntry
	for rows.Next() {
		var e violation.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox entries as relayed.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE violation_outbox SET published_at = $1 WHERE id = ANY($2::uuid[]) AND published_at IS NULL`,
		at, pq.Array(raw),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
