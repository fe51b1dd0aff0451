package drone

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_DecodesStringAndIntegerOwnerIDs(t *testing.T) {
	var positions []Position
	err := json.Unmarshal([]byte(`[
		{"id":"d1","owner_id":"u1","x":10,"y":10,"z":5},
		{"id":"d2","owner_id":42,"x":-1.5,"y":0,"z":0}
	]`), &positions)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, NewOwnerID("u1"), positions[0].OwnerID)
	assert.Equal(t, NumericOwnerID(42), positions[1].OwnerID)
	assert.Equal(t, "42", positions[1].OwnerID.String())
	assert.InDelta(t, -1.5, positions[1].X, 0)
}

func TestOwnerID_RejectsNonIdentifiers(t *testing.T) {
	var p Position
	assert.Error(t, json.Unmarshal([]byte(`{"id":"d1","owner_id":1.5}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"d1","owner_id":{"nested":true}}`), &p))
}

func TestOwnerID_RoundTripKeepsJSONKind(t *testing.T) {
	tests := []struct {
		name    string
		ownerID string
	}{
		{name: "integer", ownerID: `42`},
		{name: "plain string", ownerID: `"u1"`},
		{name: "digits with leading zeros stay a string", ownerID: `"007"`},
		{name: "signed digits stay a string", ownerID: `"+5"`},
		{name: "numeric-looking string stays a string", ownerID: `"42"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := `{"id":"d","owner_id":` + tt.ownerID + `,"x":1,"y":2,"z":3}`

			var p Position
			require.NoError(t, json.Unmarshal([]byte(in), &p))
			out, err := json.Marshal(p)
			require.NoError(t, err)

			assert.JSONEq(t, in, string(out))
		})
	}
}

func TestOwnerID_Constructors(t *testing.T) {
	out, err := json.Marshal([]OwnerID{NumericOwnerID(7), NewOwnerID("7")})
	require.NoError(t, err)
	assert.JSONEq(t, `[7,"7"]`, string(out))
	assert.True(t, OwnerID{}.IsZero())
}
