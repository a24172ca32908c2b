// Package apperr normalizes every error the console sees into one shape
// and classifies it into the small taxonomy the data layer and access
// pipeline act on.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind is the classification of a normalized error.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindNetwork         Kind = "network"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindUnknown         Kind = "unknown"
)

// Retryable reports whether reads failing with k may be retried.
func (k Kind) Retryable() bool {
	return k == KindNetwork
}

// ErrCanceled is returned to readers whose fetch was cancelled before any
// value was cached for the key.
var ErrCanceled = &Error{Message: "request cancelled", Code: "CANCELED", Kind: KindUnknown}

// Error is the single internal error shape.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
	Kind    Kind   `json:"kind"`

	cause error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Message: message, Code: code, Kind: kind}
}

// FromStatus builds an Error from an HTTP status and the envelope error fields.
func FromStatus(status int, code, message string, details any) *Error {
	e := &Error{Message: message, Code: code, Status: status, Details: details}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	e.Kind = classify(status, code)
	return e
}

// Normalize converts err into an *Error. It returns nil for nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Message: "request cancelled", Code: "CANCELED", Kind: KindUnknown, cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: "request timed out", Code: "TIMEOUT", Kind: KindNetwork, cause: err}
	}

	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return &Error{Message: "network request failed", Code: "NETWORK_ERROR", Kind: KindNetwork, cause: err}
	}

	return &Error{Message: err.Error(), Kind: KindUnknown, cause: err}
}

// KindOf returns the kind of err after normalization.
func KindOf(err error) Kind {
	if ae := Normalize(err); ae != nil {
		return ae.Kind
	}
	return ""
}

// Is reports whether err normalizes to kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func classify(status int, code string) Kind {
	switch code {
	case "VALIDATION_ERROR", "INVALID_JSON", "INVALID_ID":
		return KindValidation
	case "UNAUTHORIZED", "INVALID_SESSION":
		return KindUnauthenticated
	case "FORBIDDEN", "INACTIVE_PROFILE":
		return KindUnauthorized
	case "NOT_FOUND":
		return KindNotFound
	}

	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return KindValidation
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout, status == http.StatusTooManyRequests:
		return KindNetwork
	}
	return KindUnknown
}
