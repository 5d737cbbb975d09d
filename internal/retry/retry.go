// Package retry provides the bounded attempt policy used by login and captcha
// recognition. Every loop it drives has a fixed ceiling and ends in either a
// success or an error tagged services.ErrExhausted.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfill/internal/services"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int
	// Delay is the pause between attempts. Zero retries immediately.
	Delay time.Duration
	// Sleep overrides how delays are performed (tests).
	Sleep func(context.Context, time.Duration) error
}

// Attempt is invoked once per try with a 1-based attempt number.
type Attempt[T any] func(ctx context.Context, attempt int) (T, error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Do returns it unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, the context ends,
// or MaxAttempts calls have been made. The returned int is the number of
// calls performed.
func Do[T any](ctx context.Context, policy Policy, op string, fn Attempt[T]) (T, int, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}
		value, err := fn(ctx, attempt)
		if err == nil {
			return value, attempt, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, attempt, perm.err
		}
		lastErr = err
		if attempt < attempts {
			if err := policy.sleep(ctx); err != nil {
				return zero, attempt, err
			}
		}
	}
	return zero, attempts, fmt.Errorf("%s: %w after %d attempts: %w", op, services.ErrExhausted, attempts, lastErr)
}

func (p Policy) sleep(ctx context.Context) error {
	if p.Delay <= 0 {
		return nil
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Delay)
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
