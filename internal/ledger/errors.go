package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a type or batch does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotReleasedYet is returned when a batch is withdrawn before its cure time elapsed.
	ErrNotReleasedYet = errors.New("batch not released yet")

	// ErrAlreadyWithdrawn is returned when a closed batch is withdrawn again.
	ErrAlreadyWithdrawn = errors.New("batch already withdrawn")

	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("type already registered")

	// ErrPersistence wraps storage failures. The in-memory state is unchanged when it is returned.
	ErrPersistence = errors.New("persisting ledger")
)

// ValidationError reports invalid input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
