package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the closed taxonomy every client failure maps to.
type ErrorType string

const (
	ErrNetworkDown  ErrorType = "NETWORK_DOWN"
	ErrRateLimited  ErrorType = "RATE_LIMITED"
	ErrUnauthorized ErrorType = "UNAUTHORIZED"
	ErrBadRequest   ErrorType = "BAD_REQUEST"
	ErrServerError  ErrorType = "SERVER_ERROR"
	ErrAborted      ErrorType = "ABORTED"
	ErrUnknown      ErrorType = "UNKNOWN"
)

var messages = map[ErrorType]string{
	ErrNetworkDown:  "Service unreachable. Please try again later.",
	ErrRateLimited:  "Too many requests. Please wait a moment and try again.",
	ErrUnauthorized: "Verification expired. Please verify again.",
	ErrBadRequest:   "The request was invalid. Check the link and try again.",
	ErrServerError:  "Service unavailable. Please try again later.",
	ErrAborted:      "",
	ErrUnknown:      "Something went wrong. Please try again.",
}

// Message returns the fixed user-facing message for the type. ABORTED has none.
func (t ErrorType) Message() string {
	if m, ok := messages[t]; ok {
		return m
	}
	return messages[ErrUnknown]
}

// Error is returned by every client operation that fails.
type Error struct {
	Type ErrorType
	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int
	// Detail is the message supplied by the backend, if any.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", e.Type, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	default:
		return string(e.Type)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is what the response dock shows for this failure.
func (e *Error) UserMessage() string {
	if e.Type == ErrBadRequest && e.Detail != "" {
		return e.Detail
	}
	return e.Type.Message()
}

// TypeOf classifies any error. nil yields "".
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrAborted
	}
	return ErrUnknown
}

// IsAborted reports whether err is an intentional cancellation.
func IsAborted(err error) bool { return TypeOf(err) == ErrAborted }

func typeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrBadRequest
	case status >= http.StatusInternalServerError:
		return ErrServerError
	default:
		return ErrUnknown
	}
}
