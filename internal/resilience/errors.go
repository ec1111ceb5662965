// Package resilience provides retry and circuit breaker support for the
// external matching service call path.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether the error chain contains a TransientError or
// matches common transient network failure patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped errors from HTTP clients lose their type; fall back to
	// message patterns.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"tls handshake timeout",
		"overloaded",
		"rate limit",
		"status 429",
		"status 5",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
