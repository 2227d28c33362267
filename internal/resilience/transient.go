// Package resilience provides retry and circuit breaker support for calls to
// the remote wiki API.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (rate limits, 5xx
// responses, network timeouts).
type TransientError struct {
	Err    error
	Status int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MarkTransient wraps err as retryable, recording the HTTP status when one
// is available (0 otherwise).
func MarkTransient(err error, status int) *TransientError {
	return &TransientError{Err: err, Status: status}
}

// RetryableStatus reports whether an HTTP status code indicates a condition
// worth retrying.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsTransient reports whether err (or anything in its chain) is retryable:
// an explicit TransientError, a network timeout, a dropped connection, or a
// wrapped error matching common transport failure messages.
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

	// Wrapped transport errors from http clients lose their type; fall back
	// to message matching.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
