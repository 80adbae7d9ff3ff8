package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "letters digits dash underscore", input: "abc-1_2", valid: true},
		{name: "generated style", input: "focused_carson", valid: true},
		{name: "empty", input: "", valid: false},
		{name: "exactly 100", input: strings.Repeat("a", 100), valid: true},
		{name: "101 characters", input: strings.Repeat("a", 101), valid: false},
		{name: "space", input: "abc def", valid: false},
		{name: "slash", input: "a/b", valid: false},
		{name: "dot dot", input: "..", valid: false},
		{name: "non-ascii letter", input: "café", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionName(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSessionName)
		})
	}
}
