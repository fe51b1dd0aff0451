package violation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch/internal/drone"
	"dronewatch/internal/owner"
)

func TestNewRecord_CopiesPositionAndOwner(t *testing.T) {
	detected := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	purchased := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := NewRecord(
		drone.Position{DroneID: "d1", OwnerID: drone.NewOwnerID("u1"), X: 10, Y: 10, Z: 5},
		owner.Record{
			FirstName:            "Ada",
			LastName:             "Lovelace",
			SocialSecurityNumber: "010101-123A",
			PhoneNumber:          "+358401234567",
			Email:                "ada@example.com",
			PurchasedAt:          purchased,
		},
		detected,
	)

	assert.Equal(t, Record{
		Timestamp:         detected,
		DroneID:           "d1",
		PositionX:         10,
		PositionY:         10,
		PositionZ:         5,
		OwnerFirstName:    "Ada",
		OwnerLastName:     "Lovelace",
		OwnerSSN:          "010101-123A",
		OwnerPhone:        "+358401234567",
		OwnerEmail:        "ada@example.com",
		OwnerPurchaseDate: purchased,
	}, rec)
}

func TestNewOutboxEntry(t *testing.T) {
	rec := Record{ID: 7, DroneID: "d1", Timestamp: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)}
	now := rec.Timestamp.Add(time.Millisecond)

	entry, err := NewOutboxEntry(rec, now)
	require.NoError(t, err)
	assert.Equal(t, "violation", entry.AggregateType)
	assert.Equal(t, "d1", entry.AggregateID)
	assert.Equal(t, "nfz_violation_detected", entry.EventType)
	assert.Equal(t, now, entry.CreatedAt)
	assert.Nil(t, entry.PublishedAt)

	var evt Event
	require.NoError(t, json.Unmarshal(entry.Payload, &evt))
	assert.Equal(t, entry.ID.String(), evt.EventID)
	assert.Equal(t, int64(7), evt.Violation.ID)
	assert.True(t, rec.Timestamp.Equal(evt.OccurredAt))
}
