package ir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed error taxonomy shared by every dialect.
type ErrorKind string

const (
	ErrValidation     ErrorKind = "validation"
	ErrAuthentication ErrorKind = "authentication"
	ErrPermission     ErrorKind = "permission"
	ErrNotFound       ErrorKind = "not_found"
	ErrRateLimit      ErrorKind = "rate_limit"
	ErrServer         ErrorKind = "server"
	ErrNetwork        ErrorKind = "network"
	ErrTimeout        ErrorKind = "timeout"
	ErrCancelled      ErrorKind = "cancelled"
	ErrUnknown        ErrorKind = "unknown"
)

// statusClientClosedRequest is the nginx convention for a client that
// went away before the response completed.
const statusClientClosedRequest = 499

// HTTPStatus maps the kind to the status the gateway answers with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrAuthentication:
		return http.StatusUnauthorized
	case ErrPermission:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrServer:
		return http.StatusInternalServerError
	case ErrNetwork:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindFromStatus classifies an HTTP status code.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest:
		return ErrValidation
	case status == http.StatusUnauthorized:
		return ErrAuthentication
	case status == http.StatusForbidden:
		return ErrPermission
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status == statusClientClosedRequest:
		return ErrCancelled
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrValidation
	default:
		return ErrUnknown
	}
}

// Error is the neutral error carried through the translation pipeline.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Status  int       `json:"status,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf builds an Error with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsError extracts an *Error from an error chain, wrapping foreign
// errors as ErrUnknown so callers always have a classified error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var irErr *Error
	if errors.As(err, &irErr) {
		return irErr
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrCancelled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrTimeout, err.Error())
	}
	return NewError(ErrUnknown, err.Error())
}
