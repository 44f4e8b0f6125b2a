package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithRetry_PassesThroughSuccess(t *testing.T) {
	calls := 0
	result, err := withRetry(context.Background(), DefaultRetryPolicy(), zap.NewNop(), func() (*Result, error) {
		calls++
		return &Result{Model: "m"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "m", result.Model)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_DoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	sentinel := errors.New("boom")
	_, err := withRetry(context.Background(), DefaultRetryPolicy(), zap.NewNop(), func() (*Result, error) {
		calls++
		return nil, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsAtMaxRetries(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxRetries: 3, InitialBackoff: time.Microsecond, BackoffFactor: 2}
	_, err := withRetry(context.Background(), policy, zap.NewNop(), func() (*Result, error) {
		calls++
		return nil, &Error{Kind: ErrNetwork, Message: "down"}
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestWithRetry_HonorsCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	policy := RetryPolicy{MaxRetries: 2, InitialBackoff: time.Hour, BackoffFactor: 2}
	_, err := withRetry(ctx, policy, zap.NewNop(), func() (*Result, error) {
		calls++
		return nil, &Error{Kind: ErrNetwork, Message: "down"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable_ByKind(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{ErrNetwork, true},
		{ErrHTTPStatus, true},
		{ErrSchemaViolation, false},
		{ErrParseFailure, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &Error{Kind: tt.kind, Message: "x"}
			assert.Equal(t, tt.retryable, err.Retryable())
		})
	}
}

func TestJitter_StaysNearNominal(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), jitter(0))
}
