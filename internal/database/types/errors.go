package types

import (
	"errors"
	"fmt"
)

var (
	ErrDraftNotFound  = errors.New("draft risk scores not found")
	ErrFlagsNotFound  = errors.New("draft integrity flags not found")
	ErrPairNotFound   = errors.New("user pair analysis not found")
	ErrActionNotFound = errors.New("admin action not found")
	ErrNoPicks        = errors.New("draft has no picks")
	ErrFlagsNotFinal  = errors.New("draft integrity flags are not finalized")
	ErrFlagsFinalized = errors.New("draft integrity flags are finalized")
	// ErrConflict is returned when an optimistic write lost a race with a concurrent writer.
	ErrConflict = errors.New("concurrent modification")
	ErrNotAdmin = errors.New("acting user is not an admin")
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// TransientError marks a failure that is expected to succeed when retried later.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PartialDataError describes one missing or corrupt input that was replaced by a neutral default.
// It is collected as a warning on the analysis and never aborts it.
type PartialDataError struct {
	Entity string
	ID     string
	Reason string
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data for %s %s: %s", e.Entity, e.ID, e.Reason)
}

// EnforcementError reports that an audit record was written but applying the
// standing change to a user failed and needs a manual retry.
type EnforcementError struct {
	ActionID string
	UserIDs  []string
	Err      error
}

func (e *EnforcementError) Error() string {
	return fmt.Sprintf("action %s recorded but enforcement failed for %d user(s): %v",
		e.ActionID, len(e.UserIDs), e.Err)
}

func (e *EnforcementError) Unwrap() error {
	return e.Err
}
