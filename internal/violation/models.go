// Package violation holds the durable record of a drone caught inside the
// no-fly zone together with its owner's identity.
package violation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dronewatch/internal/drone"
	"dronewatch/internal/owner"
)

// Record is one detected violation. Records are append-only: the same drone
// seen inside the zone on consecutive ticks produces one record per tick.
type Record struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	DroneID           string    `json:"drone_id"`
	PositionX         float64   `json:"position_x"`
	PositionY         float64   `json:"position_y"`
	PositionZ         float64   `json:"position_z"`
	OwnerFirstName    string    `json:"owner_first_name"`
	OwnerLastName     string    `json:"owner_last_name"`
	OwnerSSN          string    `json:"owner_ssn"`
	OwnerPhone        string    `json:"owner_phone"`
	OwnerEmail        string    `json:"owner_email"`
	OwnerPurchaseDate time.Time `json:"owner_purchase_date"`
}

// NewRecord combines a violating position with its owner. detectedAt is the
// moment the job built the record; the store never assigns it.
func NewRecord(p drone.Position, o owner.Record, detectedAt time.Time) Record {
	return Record{
		Timestamp:         detectedAt,
		DroneID:           p.DroneID,
		PositionX:         p.X,
		PositionY:         p.Y,
		PositionZ:         p.Z,
		OwnerFirstName:    o.FirstName,
		OwnerLastName:     o.LastName,
		OwnerSSN:          o.SocialSecurityNumber,
		OwnerPhone:        o.PhoneNumber,
		OwnerEmail:        o.Email,
		OwnerPurchaseDate: o.PurchasedAt,
	}
}

const (
	// AggregateType tags outbox rows written for violations.
	AggregateType = "violation"

	// EventDetected is the outbox event type for a newly persisted violation.
	EventDetected = "nfz_violation_detected"
)

// Event is the payload relayed to Kafka for each persisted violation.
type Event struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Violation  Record    `json:"violation"`
}

// OutboxEntry is a pending or published event row.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewOutboxEntry builds the outbox row for a persisted record.
func NewOutboxEntry(r Record, now time.Time) (OutboxEntry, error) {
	id := uuid.New()
	payload, err := json.Marshal(Event{
		EventID:    id.String(),
		EventType:  EventDetected,
		OccurredAt: r.Timestamp,
		Violation:  r,
	})
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal violation event: %w", err)
	}
	return OutboxEntry{
		ID:            id,
		AggregateType: AggregateType,
		AggregateID:   r.DroneID,
		EventType:     EventDetected,
		Payload:       payload,
		CreatedAt:     now,
	}, nil
}
