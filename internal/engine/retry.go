package engine

import (
	"context"
	"errors"
	"time"

	"arbcore/internal/model"
)

const maxQuoteBackoff = time.Second

// retryPolicy retries quote reads with capped exponential backoff. Bundle
// submission never goes through it.
type retryPolicy struct {
	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
	retryable func(error) bool
}

func quoteRetryPolicy(retries int, baseDelay time.Duration) retryPolicy {
	return retryPolicy{
		retries:   retries,
		baseDelay: baseDelay,
		maxDelay:  maxQuoteBackoff,
		retryable: func(err error) bool { return errors.Is(err, model.ErrTransientVenue) },
	}
}

func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	retries := max(p.retries, 0)
	delay := p.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= retries || (p.retryable != nil && !p.retryable(err)) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.maxDelay > 0 && delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
}
