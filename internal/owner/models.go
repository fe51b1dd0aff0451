package owner

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the identity of a drone owner as returned by the owner directory.
// It is fetched per violation and only ever stored as part of a violation.
type Record struct {
	FirstName            string    `json:"first_name" validate:"required"`
	LastName             string    `json:"last_name" validate:"required"`
	SocialSecurityNumber string    `json:"social_security_number" validate:"required"`
	PhoneNumber          string    `json:"phone_number" validate:"required"`
	Email                string    `json:"email" validate:"required,email"`
	PurchasedAt          time.Time `json:"purchased_at" validate:"required"`
}

// UnmarshalJSON accepts purchased_at with or without a UTC offset.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		PurchasedAt purchaseTime `json:"purchased_at"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.PurchasedAt = time.Time(aux.PurchasedAt)
	return nil
}

// Offset-less timestamps are read as UTC.
var purchaseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

type purchaseTime time.Time

func (p *purchaseTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = purchaseTime{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("purchased_at: %w", err)
	}
	for _, layout := range purchaseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			*p = purchaseTime(t.UTC())
			return nil
		}
	}
	return fmt.Errorf("purchased_at: unsupported timestamp %q", raw)
}
