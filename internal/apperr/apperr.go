// Package apperr defines the error taxonomy shared by the server and the
// device client. Errors carry a machine-readable Code and compare by code
// with errors.Is.
package apperr

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	CodeBusy             Code = "BUSY"
	CodeNotFound         Code = "NOT_FOUND"
	CodeValidation       Code = "VALIDATION"
	CodeTransientNetwork Code = "TRANSIENT_NETWORK"
	CodeCacheDecode      Code = "CACHE_DECODE"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeInternal         Code = "INTERNAL"
)

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrBusy             = New(CodeBusy, "store is busy, please retry")
	ErrNotFound         = New(CodeNotFound, "not found")
	ErrValidation       = New(CodeValidation, "validation failed")
	ErrTransientNetwork = New(CodeTransientNetwork, "network error")
	ErrCacheDecode      = New(CodeCacheDecode, "corrupt cache entry")
	ErrUnauthorized     = New(CodeUnauthorized, "invalid credentials")
)

// Validation returns a validation error with a user-facing message.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// NotFound returns a not-found error with a user-facing message.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
