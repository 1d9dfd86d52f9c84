package environments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
	}{
		{"", Development},
		{"development", Development},
		{"staging", Staging},
		{"test", Test},
		{"production", Production},
		{"prod", Production},
		{"something-else", Production},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.input))
		})
	}
}
