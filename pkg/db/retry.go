package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultRetryAttempts   = 3
	defaultAttemptTimeout  = 5 * time.Second
	defaultInitialInterval = 50 * time.Millisecond
	defaultMaxInterval     = time.Second
)

type RetryOption func(*retryConfig)

type retryConfig struct {
	attempts       uint
	attemptTimeout time.Duration
}

func WithAttempts(n uint) RetryOption {
	return func(c *retryConfig) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// Retry runs fn with exponential backoff. Only transient store errors are
// retried; any other error is returned as is. When attempts run out the last
// error is wrapped in ErrTransient.
func Retry(ctx context.Context, fn func(ctx context.Context) error, opts ...RetryOption) error {
	cfg := retryConfig{
		attempts:       defaultRetryAttempts,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = defaultInitialInterval
	policy.MaxInterval = defaultMaxInterval

	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.attemptTimeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		if IsTransientErr(err) || (isContextErr(err) && ctx.Err() == nil) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(cfg.attempts),
	)
	if err == nil {
		return nil
	}
	if lastErr != nil && (IsTransientErr(lastErr) || (isContextErr(lastErr) && ctx.Err() == nil)) {
		return fmt.Errorf("%w: %v", ErrTransient, lastErr)
	}
	return err
}
