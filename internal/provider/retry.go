package provider

import (
	"context"
	"time"
)

// retrier holds linear-backoff retry configuration shared by the
// OpenAI-wire-compatible adapters for transient connection failures (not
// to be confused with the Agent Executor's dedicated 60-second rate-limit
// retry, which operates one layer up).
type retrier struct {
	maxAttempts int
	baseDelay   time.Duration
}

func newRetrier(maxAttempts int, baseDelay time.Duration) retrier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return retrier{maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func (r retrier) do(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) || attempt >= r.maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.baseDelay * time.Duration(attempt)):
		}
	}
	return lastErr
}
