package progression

import (
	"errors"
	"fmt"
)

// ErrInvalidState is the sentinel matched by errors.Is for any rejected
// progression state.
var ErrInvalidState = errors.New("invalid progression state")

// InvalidStateError describes why a state was rejected.
type InvalidStateError struct {
	Field  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidState, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidState, e.Field, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

func invalid(field, format string, args ...any) error {
	return &InvalidStateError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
