// Package retry wraps fallible operations with bounded retries and
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy controls attempt count and backoff growth.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the browser session defaults: three attempts with a
// two second base delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Backoff returns the wait duration before the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs op until it succeeds, attempts are exhausted, or the context
// finishes. Context errors are never retried. The last error is returned
// wrapped with the attempt count.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return fmt.Errorf("retry aborted: %w", lastErr)
			}
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
