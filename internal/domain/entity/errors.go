package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrUnknownPortal indicates a portal identifier outside the known set.
	ErrUnknownPortal = errors.New("unknown portal")

	// ErrUnknownStatus indicates a syndication status outside the known set.
	ErrUnknownStatus = errors.New("unknown syndication status")

	// ErrInvalidTransition indicates a status change not present in the
	// syndication state machine's transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
