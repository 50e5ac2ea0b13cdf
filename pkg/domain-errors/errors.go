// Package domainerrors provides coded errors for domain-level failures.
// Services return these so transport layers can translate them into HTTP
// responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// GatewayError carries a machine-readable code alongside a human message.
// It is a comparable value type so errors.Is works on equal code+message.
type GatewayError struct {
	Code    Code
	Message string
}

func (e GatewayError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New builds a GatewayError with the given code and message.
func New(code Code, message string) GatewayError {
	return GatewayError{Code: code, Message: message}
}

// Wrap annotates err with a coded GatewayError while preserving the cause
// chain for errors.Is and errors.As.
func Wrap(err error, code Code, message string) error {
	return fmt.Errorf("%w: %w", New(code, message), err)
}

// Is reports whether err carries the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	var gw GatewayError
	if errors.As(err, &gw) {
		return gw.Code == code
	}
	return false
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
