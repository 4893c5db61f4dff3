// Package apperr defines the error kinds shared by the tracker services.
// Callers test for a kind with errors.Is; services wrap the sentinels with
// context using fmt.Errorf and %w.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the entity id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the entity exists but belongs to another user.
	// Transports must render it exactly like ErrNotFound.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState means the operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyExists means a uniqueness rule rejected the write.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict means a concurrent writer won; the caller may retry.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument means the input failed validation.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidState wraps ErrInvalidState with a reason.
func InvalidState(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, reason)
}

// InvalidArgument wraps ErrInvalidArgument with a reason.
func InvalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// Hidden reports whether err must be presented to callers as "not found".
func Hidden(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

// Retryable reports whether retrying the same operation may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
