package service

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a non-privileged caller acts on another
// customer's booking or attempts a privileged-only operation.
var ErrUnauthorized = errors.New("caller is not allowed to perform this operation")

// ValidationError rejects malformed input. The message names the violated
// rule so the boundary can surface it verbatim.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func validationErr(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// StateError rejects an illegal lifecycle transition. It always names the
// current and the attempted state; it never silently no-ops.
type StateError struct {
	Current   string
	Attempted string
	Msg       string
}

func (e *StateError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s (current status %s)", e.Msg, e.Current)
	}
	return fmt.Sprintf("booking in status %s cannot transition to %s", e.Current, e.Attempted)
}
