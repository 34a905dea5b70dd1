package llm

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a call is retried and how long to back off.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy retries retryable failures up to 3 attempts with
// capped exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Retryable:   IsRetryable,
	}
}

// delay returns the backoff before attempt n (1-based, so no delay before
// the first attempt).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay << (attempt - 2)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// retry runs fn up to MaxAttempts times, backing off between attempts.
// Non-retryable failures propagate immediately. Returns the number of
// attempts actually made.
func (p RetryPolicy) retry(ctx context.Context, fn func() error) (attempts int, err error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if d := p.delay(attempt); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			}
		}

		err = fn()
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) {
			return attempt, err
		}
	}
	return p.MaxAttempts, err
}
