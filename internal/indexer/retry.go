package indexer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultRetryBackoff = 100 * time.Millisecond
	maxRetryInterval    = 30 * time.Second
)

// withRetry runs fn up to maxRetries+1 times with exponential delays
// starting at baseDelay. notify, when set, sees every failed attempt that
// will be retried.
func withRetry[T any](ctx context.Context, maxRetries int, baseDelay time.Duration, notify backoff.Notify, fn func(context.Context) (T, error)) (T, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBackoff
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxRetryInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxRetries) + 1),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, func() (T, error) { return fn(ctx) }, opts...)
}
