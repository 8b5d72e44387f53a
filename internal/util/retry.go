package util

import (
	"context"
	"errors"
	"time"
)

type retryOptions struct {
	base time.Duration
	max  time.Duration
}

// RetryOption configures the wait between attempts.
type RetryOption func(*retryOptions)

// WithBackoff waits base, 2*base, 4*base ... (capped at max) between attempts.
func WithBackoff(base, max time.Duration) RetryOption {
	return func(o *retryOptions) {
		o.base = base
		o.max = max
	}
}

func (o retryOptions) delay(attempt int) time.Duration {
	if o.base <= 0 {
		return 0
	}
	d := o.base << attempt
	if d <= 0 || (o.max > 0 && d > o.max) {
		return o.max
	}
	return d
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Retry calls fn up to maxTries times until it returns nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func Retry[T any](maxTries int, fn func() (T, error)) (T, error) {
	return RetryWithContext(context.Background(), maxTries, func(context.Context) (T, error) {
		return fn()
	})
}

// RetryWithContext calls fn up to maxTries times until it returns nil error,
// or until ctx is done. If maxTries <= 0, it defaults to 1.
// Context errors, whether from ctx or returned by fn, end the loop immediately.
func RetryWithContext[T any](
	ctx context.Context,
	maxTries int,
	fn func(context.Context) (T, error),
	opts ...RetryOption,
) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var o retryOptions
	for _, opt := range opts {
		opt(&o)
	}

	var lastErr error
	var zero T
	for i := range maxTries {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if isContextErr(err) {
			return zero, err
		}
		lastErr = err

		if i == maxTries-1 {
			break
		}
		if d := o.delay(i); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return zero, lastErr
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error, opts ...RetryOption) error {
	_, err := RetryWithContext(ctx, maxTries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}
