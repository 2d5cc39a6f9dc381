package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrInvalidEvent indicates that an event cannot be turned into a notification.
	// This error is returned when:
	//   - the event is nil
	//   - orgId is empty (tenant isolation)
	//   - a variant-specific required field is empty
	ErrInvalidEvent = errors.New("invalid notification event")

	// ErrNoRecipients indicates that a notification was requested for an empty recipient list.
	ErrNoRecipients = errors.New("notification requires at least one recipient")

	// ErrMissingID indicates that a link was requested for an entity without an id.
	ErrMissingID = errors.New("entity id is required")

	// ErrMissingTenant indicates that a record reached a persistence boundary without orgId.
	// Records carrying this error are dropped, never written.
	ErrMissingTenant = errors.New("record has no tenant (orgId)")

	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("entity not found")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
// ValidationError unwraps to ErrInvalidEvent so callers can match the whole class with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalidEvent.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidEvent
}
