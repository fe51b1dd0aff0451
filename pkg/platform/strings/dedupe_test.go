package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "empty", raw: "", expected: nil},
		{name: "blank", raw: "  ,  ", expected: nil},
		{name: "single broker", raw: "localhost:9092", expected: []string{"localhost:9092"}},
		{
			name:     "trims and drops empties",
			raw:      " b1:9092 ,, b2:9092 ",
			expected: []string{"b1:9092", "b2:9092"},
		},
		{
			name:     "dedupes preserving first occurrence",
			raw:      "b2:9092,b1:9092,b2:9092",
			expected: []string{"b2:9092", "b1:9092"},
		},
		{
			name:     "case is significant",
			raw:      "Broker,broker",
			expected: []string{"Broker", "broker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.raw, ","))
		})
	}
}
