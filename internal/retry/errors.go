package retry

import (
	"context"
	"errors"
	"net"
)

// transientError marks an error as a transient network fault eligible for
// retry. The wrapped error stays visible to errors.Is/As.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Callers wrap connection failures,
// timeouts, and rate-limit/5xx responses; validation and other 4xx errors
// are left unmarked so they propagate immediately.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is eligible for retry: explicitly marked
// via Transient, or a network-level timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	// A canceled parent context is a caller decision, never retried.
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
