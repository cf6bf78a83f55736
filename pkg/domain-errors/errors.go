// Package domainerrors carries coded errors from the service layer to the
// transport boundary. Services return *Error values; handlers translate the
// Code into a status and a protocol error body.
package domainerrors

import (
	"context"
	"errors"
)

// Code identifies the class of a failure independently of the transport.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"

	// OAuth 2.0 protocol outcomes (RFC 6749 sections 4.1.2.1 and 5.2).
	CodeInvalidRequest       Code = "invalid_request"
	CodeInvalidClient        Code = "invalid_client"
	CodeInvalidGrant         Code = "invalid_grant"
	CodeAccessDenied         Code = "access_denied"
	CodeUnsupportedGrantType Code = "unsupported_grant_type"
	CodeServerError          Code = "server_error"
	CodeLoginRequired        Code = "login_required"
)

// Error is a coded domain error. Message is safe to show to callers for
// client-fault codes; Err holds the underlying cause and is never rendered.
type Error struct {
	Code    Code
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

// New creates a coded error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost *Error in the chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// FromStoreError wraps an infrastructure failure, classifying context
// deadlines as timeouts so callers can tell them apart from other faults.
func FromStoreError(err error, msg string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, msg)
	}
	return Wrap(err, CodeInternal, msg)
}

// IsServerFault reports whether the code represents an internal failure whose
// details must not be exposed to callers.
func IsServerFault(code Code) bool {
	switch code {
	case CodeInternal, CodeTimeout, CodeInvariantViolation, CodeServerError:
		return true
	}
	return false
}
