package investment

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

// RetryPolicy bounds how often an atomic unit is re-run after a conflict
type RetryPolicy struct {
	MaxAttempts uint
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy allows five attempts with jittered exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: 20 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseBackoff,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         p.MaxBackoff,
	}
}

// isRetryable reports whether err is a transient storage conflict
func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrConflict) || domain.IsCode(err, domain.CodeConcurrentUpdateConflict)
}

// retryAtomic runs fn until it succeeds, fails with a non-conflict error,
// or the attempt budget is spent. Every attempt is a fresh unit of work,
// so a failed attempt leaves nothing behind.
func retryAtomic[T any](ctx context.Context, policy RetryPolicy, onConflict func(attempt uint, err error), fn func() (T, error)) (T, uint, error) {
	var attempts uint
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		out, err := fn()
		if err == nil {
			return out, nil
		}
		if isRetryable(err) {
			if onConflict != nil {
				onConflict(attempts, err)
			}
			return out, err
		}
		return out, backoff.Permanent(err)
	},
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(policy.MaxAttempts),
	)
	return res, attempts, err
}
