package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error classes for model-call failures. Provider errors are mapped onto
// exactly one of these; callers test with errors.Is.
var (
	ErrAuth           = errors.New("authentication failed")
	ErrRateLimit      = errors.New("rate limited")
	ErrTimeout        = errors.New("request timed out")
	ErrNetwork        = errors.New("network error")
	ErrInvalidRequest = errors.New("invalid request")
)

// Error is a classified provider error.
type Error struct {
	Kind     error
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}

// Fatal reports whether err must abort the whole pipeline.
func Fatal(err error) bool {
	return errors.Is(err, ErrAuth)
}

// Class returns a short label for err's class, for logs and metrics.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

// kindForStatus maps an HTTP status code onto an error class.
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status >= 500:
		return ErrNetwork
	case status >= 400:
		return ErrInvalidRequest
	default:
		return ErrNetwork
	}
}

// classify wraps err in an *Error. status is the HTTP status when the
// provider reported one, or 0 for transport-level failures.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var kind error
	switch {
	case status > 0:
		kind = kindForStatus(status)
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = ErrTimeout
		} else {
			kind = ErrNetwork
		}
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Err: err}
}
