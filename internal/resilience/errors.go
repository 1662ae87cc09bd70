// Package resilience classifies upstream failures for logging and accounting.
// Nothing here retries: a failed lookup is left for the next request.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Failure kinds reported by Classify.
const (
	KindTransient = "transient"
	KindPermanent = "permanent"
)

// TransientError marks an upstream failure expected to clear on its own,
// such as an overloaded gateway or an exhausted rate window.
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

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"client.timeout exceeded",
}

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, a network timeout, a deadline, a refused or reset
// connection, or carries a message typical of such failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
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

// IsTransientHTTPStatus reports whether an HTTP status code indicates a
// temporary upstream condition.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Classify returns KindTransient or KindPermanent for a non-nil error and ""
// for nil. Cancellation by the caller is neither and also yields "".
func Classify(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ""
	case IsTransient(err):
		return KindTransient
	default:
		return KindPermanent
	}
}
