// Package core provides the error taxonomy and input validation shared by the
// osmreach engine and its transports.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode defines standard error codes. An ErrorCode is itself an error so
// it can be used as an errors.Is target:
//
//	if errors.Is(err, core.ErrRootNotFound) { ... }
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidDepth     ErrorCode = "INVALID_DEPTH"
	ErrInvalidRadius    ErrorCode = "INVALID_RADIUS"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"

	// Query errors
	ErrRootNotFound   ErrorCode = "ROOT_NOT_FOUND"
	ErrDegenerateRoad ErrorCode = "DEGENERATE_ROAD"
	ErrQueryTooBroad  ErrorCode = "QUERY_TOO_BROAD"

	// Startup errors
	ErrMissingNode  ErrorCode = "MISSING_NODE"
	ErrCacheCorrupt ErrorCode = "CACHE_CORRUPT"
	ErrIngest       ErrorCode = "INGEST_ERROR"

	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error implements the error interface for bare codes
func (c ErrorCode) Error() string {
	return string(c)
}

// Error is a detailed error carried back to a single caller
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Query    string    `json:"query,omitempty"`
	Guidance string    `json:"guidance,omitempty"`
	cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Guidance != "" {
		msg = fmt.Sprintf("%s. %s", msg, e.Guidance)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches an ErrorCode target against the error's code
func (e *Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new Error with a formatted message
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithQuery adds query information to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// Wrap attaches an underlying cause
func (e *Error) Wrap(err error) *Error {
	e.cause = err
	return e
}

// HTTPStatus maps the error code onto an HTTP status
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidInput, ErrInvalidLatitude, ErrInvalidLongitude,
		ErrInvalidDepth, ErrInvalidRadius, ErrMissingParameter, ErrDegenerateRoad:
		return http.StatusBadRequest
	case ErrRootNotFound:
		return http.StatusNotFound
	case ErrQueryTooBroad:
		return http.StatusUnprocessableEntity
	case ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// AsError returns err as an *Error, wrapping anything else as INTERNAL_ERROR
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return NewError(code, string(code))
	}
	return NewError(ErrInternalError, "internal error").Wrap(err)
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *Error {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}
