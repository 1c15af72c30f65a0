// Package retry runs an operation until it succeeds, fails permanently, or
// runs out of attempts, sleeping between attempts according to a Backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Backoff returns the delay after the failed attempt with the given
// zero-based index.
type Backoff func(attempt int) time.Duration

// Exponential returns base × 2^attempt, capped at max when max > 0.
func Exponential(base time.Duration, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		delay := float64(base) * math.Pow(2, float64(attempt))
		if max > 0 && delay > float64(max) {
			return max
		}
		if delay > math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(delay)
	}
}

// Constant always waits delay.
func Constant(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var permanent *permanentError
	return errors.As(err, &permanent)
}

// Option configures Do.
type Option func(*settings)

type settings struct {
	onRetry func(attempt int, err error, delay time.Duration)
}

// OnRetry registers a callback invoked before each wait.
func OnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(s *settings) { s.onRetry = fn }
}

// Do calls fn up to maxAttempts times. A nil error ends the loop with fn's
// value; a Permanent error is returned at once; context cancellation stops
// both the waiting and further attempts and returns the context error.
func Do[T any](ctx context.Context, maxAttempts int, backoff Backoff, fn func(ctx context.Context) (T, error), options ...Option) (T, error) {
	var zero T
	var s settings
	for _, option := range options {
		option(&s)
	}

	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if backoff == nil {
		backoff = Constant(0)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return zero, permanent.err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		delay := backoff(attempt)
		if s.onRetry != nil {
			s.onRetry(attempt, err, delay)
		}
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}
