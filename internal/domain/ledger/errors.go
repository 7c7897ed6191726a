package ledger

import (
	"errors"
	"fmt"
)

// ErrConflict marks a write that lost a race against a concurrent pass.
// Callers treat it as a benign no-op.
var ErrConflict = errors.New("concurrent claim conflict")

// ValidationError reports a malformed field on a single item.
// It aborts only that item; batch passes continue with the rest.
type ValidationError struct {
	Item   string
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("invalid %s on %s (%q): %s", e.Field, e.Item, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s (%q): %s", e.Field, e.Value, e.Reason)
}

// NotFoundError reports a missing referenced resource.
// It aborts only the dependent sub-step.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
