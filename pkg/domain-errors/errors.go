// Package domainerrors defines the coded error type shared by services and the
// HTTP layer. Services attach a Code; handlers translate it to a status.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, client-facing error identifier.
type Code string

const (
	CodeBadRequest  Code = "bad_request"
	CodeValidation  Code = "validation_error"
	CodeNotFound    Code = "not_found"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "service_unavailable"
	CodeBadGateway  Code = "bad_gateway"
	CodeInternal    Code = "internal_error"
)

// Error carries a Code and a client-safe message, optionally wrapping a cause.
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

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err carries a domain Error anywhere in its chain.
func Is(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// HasCode reports whether the outermost domain Error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain Error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to its HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
