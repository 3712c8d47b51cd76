// Package apperrors classifies service failures so controllers can map them
// to responses without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the failure category of a service error.
type Kind int

const (
	// KindInternal is an unexpected infrastructure failure; the operation
	// was rolled back entirely.
	KindInternal Kind = iota
	// KindValidation is malformed input; nothing was mutated.
	KindValidation
	// KindBusiness is a domain rule violation (self-approval, duplicate
	// fiscal year, guarantor limit); nothing was mutated.
	KindBusiness
	// KindConflict is an operation against an entity in the wrong state.
	KindConflict
	// KindNotFound is an unknown entity id.
	KindNotFound
	// KindUnauthorized is an actor lacking the required permission.
	KindUnauthorized
)

// Error carries a failure kind alongside the message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a validation error.
func Validation(message string) error {
	return New(KindValidation, message)
}

// Business builds a business-rule violation.
func Business(message string) error {
	return New(KindBusiness, message)
}

// Conflict builds a state-conflict error.
func Conflict(message string) error {
	return New(KindConflict, message)
}

// NotFound builds a not-found error.
func NotFound(message string) error {
	return New(KindNotFound, message)
}

// Unauthorized builds an authorization error.
func Unauthorized(message string) error {
	return New(KindUnauthorized, message)
}

// KindOf extracts the kind of an error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether the error carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
