package inference

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how often a transient inference failure is retried.
// Only network and http_status errors qualify; content failures repeat
// deterministically and retrying them wastes a model call.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	BackoffFactor  float64
}

// DefaultRetryPolicy returns the standard policy: two retries with
// exponential backoff starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

// withRetry invokes call, retrying retryable failures per the policy.
// Backoff waits are jittered and cut short by context cancellation.
func withRetry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, call func() (*Result, error)) (*Result, error) {
	backoff := policy.InitialBackoff
	for attempt := 0; ; attempt++ {
		res, err := call()
		if err == nil {
			return res, nil
		}
		var infErr *Error
		if !errors.As(err, &infErr) || !infErr.Retryable() || attempt >= policy.MaxRetries {
			return nil, err
		}
		delay := jitter(backoff)
		logger.Debug("retrying inference request",
			zap.String("kind", string(infErr.Kind)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay))
		select {
		case <-ctx.Done():
			return nil, &Error{Kind: ErrNetwork, Message: "cancelled while waiting to retry", Cause: ctx.Err()}
		case <-time.After(delay):
		}
		backoff = time.Duration(float64(backoff) * policy.BackoffFactor)
	}
}

// jitter spreads a delay across 80-120% of its nominal value so fan-out
// workers hitting the same fault do not retry in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}
