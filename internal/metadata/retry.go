package metadata

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often a remote call is repeated. Only errors accepted by
// Retryable are retried; anything else is returned after the first attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy makes up to three attempts one second apart, retrying
// only timeouts and connection failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Second,
		Retryable:   IsTransient,
	}
}

// NoRetry makes a single attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts
// run out. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 1 {
		return fn(ctx)
	}

	backoff := p.Backoff
	if backoff <= 0 {
		backoff = time.Nanosecond
	}
	b := retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewConstant(backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && p.retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsTransient(err)
	}
	return p.Retryable(err)
}
