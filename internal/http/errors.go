package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error classes. Every error returned by Client wraps exactly one of
// ErrTransport, ErrProtocol or ErrTimeout, unless the caller's context was
// cancelled, in which case the context error is returned unwrapped.
var (
	ErrTransport = errors.New("http: transport error")
	ErrProtocol  = errors.New("http: protocol error")
	ErrTimeout   = errors.New("http: timeout")

	ErrNotFound        = errors.New("http: resource not found")
	ErrForbidden       = errors.New("http: access forbidden")
	ErrUnauthorized    = errors.New("http: unauthorized")
	ErrTooManyRequests = errors.New("http: too many requests")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Status  string
	Message string // leading part of the response body, if any
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected status: %s: %s", e.Status, e.Message)
}

// Unwrap makes every StatusError an ErrProtocol.
func (e *StatusError) Unwrap() error {
	return ErrProtocol
}

// Is matches the status-specific sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrTooManyRequests:
		return e.Code == http.StatusTooManyRequests
	}
	return false
}

// Class is the failure class of an error, which decides how a job reacts.
type Class int

const (
	ClassNone Class = iota
	ClassTimeout
	ClassProtocol
	ClassTransport
	ClassCanceled
	ClassUnknown
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTimeout:
		return "timeout"
	case ClassProtocol:
		return "protocol"
	case ClassTransport:
		return "transport"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify returns the class of err.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrTimeout):
		return ClassTimeout
	case errors.Is(err, ErrProtocol):
		return ClassProtocol
	case errors.Is(err, ErrTransport):
		return ClassTransport
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	default:
		return ClassUnknown
	}
}

// wrapTransport tags an error raised while talking to the server.
func wrapTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
