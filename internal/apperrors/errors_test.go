package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad"), KindValidation},
		{"not found", NotFound("missing"), KindNotFound},
		{"conflict", Conflict("taken"), KindConflict},
		{"forbidden", Forbidden("nope"), KindForbidden},
		{"unauthorized", Unauthorized("who"), KindUnauthorized},
		{"wrapped", fmt.Errorf("outer: %w", Conflict("inner")), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInternal_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("Server error", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, Is(err, KindInternal))
}

func TestValidationFields(t *testing.T) {
	err := ValidationFields("Validation failed", map[string]string{"title": "required"})

	ae, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "required", ae.Fields["title"])
	assert.Equal(t, "Validation failed", ae.Error())
}
