package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Category classifies a failure for per-lead accounting.
type Category string

const (
	CategoryTransient  Category = "transient"
	CategoryTimeout    Category = "timeout"
	CategoryUnexpected Category = "unexpected"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeouts) with the HTTP status that produced it, when known.
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

// NewTransient wraps an error as transient with an optional HTTP status code.
func NewTransient(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// Classify maps an error onto the failure taxonomy. Timeout beats transient:
// a deadline expiry inside an HTTP call should count against the lead budget,
// not look like a retryable network blip.
func Classify(err error) Category {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CategoryTimeout
	case IsTransient(err):
		return CategoryTransient
	default:
		return CategoryUnexpected
	}
}

// transientPatterns matches wrapped errors from HTTP clients that lose their
// concrete types on the way up.
var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether the error (or anything in its chain) looks like
// a retryable network or server-side failure.
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

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether a status code is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
