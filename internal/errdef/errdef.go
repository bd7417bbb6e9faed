// Package errdef defines the error kinds surfaced by the engine. Each kind wraps
// a formatted error and is detected with errors.As, so kinds survive %w wrapping.
package errdef

import (
	"errors"
	"fmt"
)

// NewValidation creates an error representing malformed input. Validation errors
// are surfaced to the caller immediately and never retried.
func NewValidation(format string, a ...any) error {
	return validation{fmt.Errorf(format, a...)}
}

type validation struct{ error }

func (e validation) Unwrap() error { return e.error }

// IsValidation returns true if err represents malformed input.
func IsValidation(err error) bool {
	var e validation
	return errors.As(err, &e)
}

// NewNotFound creates an error representing an entity that could not be found.
func NewNotFound(format string, a ...any) error {
	return notFound{fmt.Errorf(format, a...)}
}

type notFound struct{ error }

func (e notFound) Unwrap() error { return e.error }

// IsNotFound returns true if err represents an entity that could not be found.
func IsNotFound(err error) bool {
	var e notFound
	return errors.As(err, &e)
}

// NewTransientStore creates an error representing a failed read or write against
// the backing store. Callers decide whether to substitute a default or retry.
func NewTransientStore(format string, a ...any) error {
	return transientStore{fmt.Errorf(format, a...)}
}

type transientStore struct{ error }

func (e transientStore) Unwrap() error { return e.error }

func IsTransientStore(err error) bool {
	var e transientStore
	return errors.As(err, &e)
}

// NewConflict creates an error representing a conflicting state, such as a
// duplicate invite or a disallowed status transition.
func NewConflict(format string, a ...any) error {
	return conflict{fmt.Errorf(format, a...)}
}

type conflict struct{ error }

func (e conflict) Unwrap() error { return e.error }

func IsConflict(err error) bool {
	var e conflict
	return errors.As(err, &e)
}

func NewForbidden(format string, a ...any) error {
	return forbidden{fmt.Errorf(format, a...)}
}

type forbidden struct{ error }

func (e forbidden) Unwrap() error { return e.error }

func IsForbidden(err error) bool {
	var e forbidden
	return errors.As(err, &e)
}
