// Package apperr classifies errors crossing the sync boundary.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input the remote store would reject. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a resource the remote store no longer has.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks transient failures: network, timeout, 5xx. Retried with backoff.
	ErrUnavailable = errors.New("remote unavailable")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Unavailablef wraps ErrUnavailable with a formatted reason.
func Unavailablef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnavailable}, args...)...)
}

// Permanent reports whether err should never be retried.
// Unknown errors count as transient: dropping a queued operation on a
// misclassified error loses data, retrying one does not.
func Permanent(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
