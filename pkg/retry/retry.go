// Package retry wraps remote calls with bounded exponential backoff.
//
// Errors are classified by type rather than by message substrings: remote
// adapters tag errors with Transient/Permanent, and well known transport
// error types (net timeouts, connection resets, 5xx API responses) are
// recognised directly.
package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
)

// MaxAttempts is the total attempt budget including the first call.
const MaxAttempts = 3

// baseDelay is doubled per attempt: 2s, 4s. No jitter, the call volume is
// tiny. Overridable in tests.
var baseDelay = 2 * time.Second

// TransientError marks an error as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an error as never worth retrying.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient tags err as retryable. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent tags err as not retryable. Returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err should be retried. Explicit tags win,
// then transport-level signals are inspected.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 500, 502, 503, 504:
			return true
		}
		return false
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

// Do runs fn, retrying transient failures up to MaxAttempts total attempts
// with exponential backoff. Non-retryable errors are returned immediately.
func Do(ctx context.Context, label string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := baseDelay << (attempt - 1)
			log.Warn().Str("operation", label).Int("attempt", attempt+1).
				Dur("backoff", wait).Err(lastErr).Msg("Retrying after transient error")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
	}

	log.Error().Str("operation", label).Int("attempts", MaxAttempts).Err(lastErr).
		Msg("Retries exhausted")
	return lastErr
}

// DoWithResult is Do for operations that return a value.
func DoWithResult[T any](ctx context.Context, label string, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, label, func() error {
		var ferr error
		result, ferr = fn()
		return ferr
	})
	return result, err
}
