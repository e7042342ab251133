// Package domainerrors carries error codes from services to transport.
// Handlers branch on the code; the HTTP status and response shape are
// derived from it in one place.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. The string value is the wire
// format returned in error responses.
type Code string

const (
	CodeInternal     Code = "internal_error"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeUnavailable  Code = "unavailable"
)

// Error is a coded error. The message is safe to return to clients for
// every code except CodeInternal.
type Error struct {
	code Code
	msg  string
	err  error
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is lets errors.Is treat two coded errors with the same code and
// message as equal regardless of allocation.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.code == other.code && e.msg == other.msg
}

// Code returns the error's code.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the client-safe message without the wrapped cause.
func (e *Error) Message() string {
	return e.msg
}

// Is reports whether any error in the chain carries the given code.
func Is(err error, code Code) bool {
	var coded *Error
	if !errors.As(err, &coded) {
		return false
	}
	return coded.code == code
}

// CodeOf returns the code of the outermost coded error in the chain.
// Uncoded errors map to CodeInternal.
func CodeOf(err error) Code {
	var coded *Error
	if !errors.As(err, &coded) {
		return CodeInternal
	}
	return coded.code
}

// MessageOf returns the client-safe message of the outermost coded
// error, or empty for uncoded errors.
func MessageOf(err error) string {
	var coded *Error
	if !errors.As(err, &coded) {
		return ""
	}
	return coded.msg
}

// HTTPStatus maps a code to its response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
