package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind string

const (
	KindTimeout        ErrorKind = "timeout"
	KindOverloaded     ErrorKind = "overloaded"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInvalidPayload ErrorKind = "invalid_payload"
	KindAuth           ErrorKind = "auth"
)

// Error is the provider-neutral failure type returned by clients.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Wrap builds an Error around a provider-specific cause.
func Wrap(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Transient reports whether retrying the same call may succeed.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindOverloaded, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsTransient classifies an arbitrary error. Unknown errors are treated as
// permanent so malformed requests are not retried blindly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

// KindOf extracts the error kind for logging; unknown errors report "unknown".
func KindOf(err error) string {
	var lerr *Error
	if errors.As(err, &lerr) {
		return string(lerr.Kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(KindTimeout)
	}
	return "unknown"
}
