package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error code carried in every error envelope.
type Code string

// The full error taxonomy. Every failure leaving the API maps to exactly
// one of these codes and its fixed HTTP status.
const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeTimeout         Code = "TIMEOUT"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus returns the fixed HTTP status for the code. Unknown codes map
// to 500 so an unclassified failure can never leave without an envelope.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single tagged error type domain operations raise. Internal
// call chains propagate it as a typed result; the API boundary renders it
// through the error envelope. It may wrap an underlying cause for logging,
// which is never serialized to clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error that records an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Convenience constructors for the common codes.

func InvalidArgument(message string) *Error { return NewError(CodeInvalidArgument, message) }
func Unauthorized(message string) *Error    { return NewError(CodeUnauthorized, message) }
func Forbidden(message string) *Error       { return NewError(CodeForbidden, message) }
func NotFound(message string) *Error        { return NewError(CodeNotFound, message) }
func Conflict(message string) *Error        { return NewError(CodeConflict, message) }
func Timeout(message string) *Error         { return NewError(CodeTimeout, message) }
func Internal(message string) *Error        { return NewError(CodeInternal, message) }

// AsError extracts a domain *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
