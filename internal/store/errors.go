package store

import "fmt"

// Code is the store-level error taxonomy from spec.md §4.2/§7. The
// Callable API (C10) translates these into the {code, message} shape
// at the HTTP boundary; everywhere else they're plain Go error values.
type Code string

const (
	CodeNotFound         Code = "not-found"
	CodeAlreadyExists    Code = "already-exists"
	CodeInvalidArgument  Code = "invalid-argument"
	CodeUnauthenticated  Code = "unauthenticated"
	CodePermissionDenied Code = "permission-denied"
	CodeResourceExhausted Code = "resource-exhausted"
	CodeUnavailable      Code = "unavailable" // retryable
	CodeInternal         Code = "internal"
)

// Error wraps a store-level failure with its taxonomy code. Messages
// never include hashed ids or other internal identifiers, per the
// propagation policy in spec.md §7.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether this error's code indicates a transient
// failure that RunTransaction should retry.
func (e *Error) Retryable() bool { return e.Code == CodeUnavailable }

func NewNotFound(message string) *Error { return &Error{Code: CodeNotFound, Message: message} }
func NewAlreadyExists(message string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: message}
}
func NewInvalidArgument(message string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: message}
}
func NewUnauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}
func NewPermissionDenied(message string) *Error {
	return &Error{Code: CodePermissionDenied, Message: message}
}
func NewResourceExhausted(message string) *Error {
	return &Error{Code: CodeResourceExhausted, Message: message}
}
func NewUnavailable(message string, err error) *Error {
	return &Error{Code: CodeUnavailable, Message: message, Err: err}
}
func NewInternal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// AsCode extracts the taxonomy code from err, defaulting to Internal
// for errors the store layer didn't originate.
func AsCode(err error) Code {
	if err == nil {
		return ""
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return CodeInternal
}
