package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "required orgId",
			field:    "orgId",
			message:  "orgId is required",
			expected: "validation error on field 'orgId': orgId is required",
		},
		{
			name:     "required variant field",
			field:    "workOrderId",
			message:  "workOrderId is required",
			expected: "validation error on field 'workOrderId': workOrderId is required",
		},
		{
			name:     "empty message",
			field:    "test",
			message:  "",
			expected: "validation error on field 'test': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{
				Field:   tt.field,
				Message: tt.message,
			}

			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_UnwrapsToInvalidEvent(t *testing.T) {
	var err error = &ValidationError{Field: "orgId", Message: "orgId is required"}

	assert.True(t, errors.Is(err, ErrInvalidEvent))
	assert.False(t, errors.Is(err, ErrNoRecipients))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "orgId", ve.Field)
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{ErrInvalidEvent, ErrNoRecipients, ErrMissingID, ErrMissingTenant, ErrNotFound}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}
