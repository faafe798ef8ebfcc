package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed input rejected before persistence.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates the dedup key already exists; callers treat it as a no-op.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrAlreadyAllocated indicates the entry already carries an allocation breakdown.
	ErrAlreadyAllocated = errors.New("entry already allocated")
)

// ValidationError wraps a field-level rejection so batch callers can report it per item.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError constructs a field-level validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
