package app

import (
	"errors"
	"fmt"

	"github.com/hylla/connboard/internal/domain"
)

// ErrNotFound and related errors classify command failures.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition failed")
)

// ValidationError is a guard that was not met. Message is shown to the user as-is.
type ValidationError struct {
	Message string
	Err     error
}

// Error returns the user-facing message.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap exposes ErrValidation and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// PreconditionError carries the store's reason for refusing a delete.
type PreconditionError struct {
	Reason string
}

// Error returns the reason verbatim.
func (e *PreconditionError) Error() string {
	return e.Reason
}

// Unwrap exposes ErrPrecondition.
func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// asValidation classifies domain validation errors; anything else passes through.
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if domain.IsValidationError(err) {
		return &ValidationError{Message: err.Error(), Err: err}
	}
	return err
}
