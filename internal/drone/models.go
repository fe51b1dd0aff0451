package drone

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Position is one drone's reported location at fetch time. It is never stored
// on its own; violating positions are copied into violation records.
type Position struct {
	DroneID string  `json:"id" validate:"required"`
	OwnerID OwnerID `json:"owner_id" validate:"required"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
}

// OwnerID is an owner identifier that the feed may send as a JSON string or
// integer. String returns the normalized form used for lookups; marshalling
// writes back the JSON kind that was decoded.
type OwnerID struct {
	value   string
	numeric bool
}

// NewOwnerID builds an owner id that encodes as a JSON string.
func NewOwnerID(id string) OwnerID {
	return OwnerID{value: id}
}

// NumericOwnerID builds an owner id that encodes as a JSON integer.
func NumericOwnerID(id int64) OwnerID {
	return OwnerID{value: strconv.FormatInt(id, 10), numeric: true}
}

var errInvalidOwnerID = errors.New("owner_id must be a string or an integer")

func (o *OwnerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = OwnerID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = NewOwnerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errInvalidOwnerID
	}
	if _, err := n.Int64(); err != nil {
		return errInvalidOwnerID
	}
	*o = OwnerID{value: n.String(), numeric: true}
	return nil
}

func (o OwnerID) MarshalJSON() ([]byte, error) {
	if o.numeric {
		return []byte(o.value), nil
	}
	return json.Marshal(o.value)
}

func (o OwnerID) String() string {
	return o.value
}

// IsZero reports whether no owner id was given.
func (o OwnerID) IsZero() bool {
	return o.value == ""
}
