package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "TRANSACTION_REALIZED",
			expected: []string{"TRANSACTION_REALIZED"},
		},
		{
			name:     "two values",
			input:    "TRANSACTION_REALIZED, TRANSFER_REALIZED",
			expected: []string{"TRANSACTION_REALIZED", "TRANSFER_REALIZED"},
		},
		{
			name:     "varied spacing",
			input:    "a,  b , c",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "trailing comma",
			input:    "PAST_DUE_DIGEST,",
			expected: []string{"PAST_DUE_DIGEST"},
		},
		{
			name:     "leading comma",
			input:    ",EXCEPTION_ADDED",
			expected: []string{"EXCEPTION_ADDED"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}
