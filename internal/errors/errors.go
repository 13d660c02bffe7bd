// Package errors provides the shared error taxonomy for the ticketing core.
// Every error carries a Kind that maps to a stable wire name (used by the
// RPC facade) and an HTTP status code (used by the HTTP facade).
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind represents the category of an error.
type Kind int

const (
	// KindValidation represents bad input: unknown action, missing field,
	// unrecognized enum value. HTTP status: 400 Bad Request.
	KindValidation Kind = iota

	// KindNotFound represents a missing ticket or link. HTTP status: 404.
	KindNotFound

	// KindInvalidTransition represents a status change the state machine
	// rejected. HTTP status: 409 Conflict.
	KindInvalidTransition

	// KindConflict represents a unique-violation on links. HTTP status: 409.
	KindConflict

	// KindInternal represents any unclassified database or host failure.
	// HTTP status: 500 Internal Server Error.
	KindInternal
)

// String returns the stable wire name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindConflict:
		return "Conflict"
	case KindInternal:
		return "InternalError"
	default:
		return "InternalError"
	}
}

// Error is a structured error with a kind, message, and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Constructor functions

// Validation creates an error for bad input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an error for missing resources.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransition creates an error for state-machine rejections.
func InvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates an error for unique-violation conflicts.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an error for unclassified failures.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a specific kind and message.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WrapInternal wraps an error as an internal error, preserving the original
// message for the host.
func WrapInternal(err error, format string, args ...any) *Error {
	return Wrap(err, KindInternal, format, args...)
}

// Helper functions

// GetKind extracts the Kind from an error, returning KindInternal for
// anything that is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// GetHTTPStatus extracts the HTTP status code from an error.
func GetHTTPStatus(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Is returns true if the error is of the specified kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
