// Package backoff provides a linear retry helper shared by the inference
// dialects.
package backoff

import (
	"context"
	"time"
)

// Policy holds retry configuration.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// NewPolicy returns a Policy with sane defaults substituted for non-positive
// fields.
func NewPolicy(maxAttempts int, delay time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}
	return Policy{MaxAttempts: maxAttempts, Delay: delay}
}

// Retry runs op, retrying with linear backoff (attempt*Delay) while
// isRetryable(err) is true. It gives up after MaxAttempts or when ctx is
// cancelled, whichever comes first.
func (p Policy) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay * time.Duration(attempt)):
		}
	}
	return lastErr
}
