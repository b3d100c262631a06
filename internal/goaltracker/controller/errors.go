package controller

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyCompleted    = errors.New("goal already completed")
	ErrAlreadyMember       = errors.New("user is already a member of this group")
	ErrCapacityExceeded    = errors.New("group has reached its maximum size")
	ErrCannotRemoveCreator = errors.New("group creator cannot be removed")
	ErrInvalidCredentials  = errors.New("invalid email or password")
)

// Error carries a user-facing reason for one of the sentinel errors above.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}
