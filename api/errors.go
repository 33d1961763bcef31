package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure
type Kind string

const (
	KindNetwork        Kind = "network"        // no response reached us
	KindAuthentication Kind = "authentication" // 401 or no token to send
	KindValidation     Kind = "validation"     // 400/422 with field errors
	KindRequest        Kind = "request"        // any other 4xx
	KindServer         Kind = "server"         // 5xx or an unreadable response
)

// Error is the error type returned by every Client call
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	Fields    map[string][]string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status > 0 {
		return fmt.Sprintf("api %s error (%d): %s", e.Kind, e.Status, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("api %s error: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("api %s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuthentication reports whether err means the session is no longer valid
func IsAuthentication(err error) bool {
	return KindOf(err) == KindAuthentication
}

// IsTransient reports whether repeating the request might succeed
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer:
		return true
	}
	return false
}

// FieldErrors returns the per-field validation messages carried by err
func FieldErrors(err error) map[string][]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindRequest
	}
}
