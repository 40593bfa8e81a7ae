package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdandz/TSBot/databases"
)

func fastRetryer(maxRetries int) *Retryer {
	return NewRetryer(RetryConfig{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.1,
		RetryableErrors: []string{
			"connection refused",
			"timeout",
		},
	})
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	r := fastRetryer(3)
	calls := 0
	got, err := DoWithResult(context.Background(), r, "search", func() (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	r := fastRetryer(3)
	calls := 0
	err := r.Do(context.Background(), "upsert", func() error {
		calls++
		return fmt.Errorf("invalid collection name")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsRetryExhausted(err))
}

func TestRetryExhaustionWrapsLastError(t *testing.T) {
	r := fastRetryer(2)
	base := fmt.Errorf("timeout")
	err := r.Do(context.Background(), "embed", func() error { return base })
	require.Error(t, err)
	assert.True(t, IsRetryExhausted(err))
	assert.ErrorIs(t, err, base)

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, "embed", retryErr.Operation)
	assert.Equal(t, 3, retryErr.Attempts)
}

func TestRetryHonorsRetrievableErrors(t *testing.T) {
	r := fastRetryer(1)
	calls := 0
	err := r.Do(context.Background(), "search", func() error {
		calls++
		return &databases.RetrievableError{Err: fmt.Errorf("backend busy")}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	r := fastRetryer(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Do(ctx, "search", func() error { return fmt.Errorf("timeout") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryContextErrorNotRetryable(t *testing.T) {
	r := fastRetryer(5)
	calls := 0
	err := r.Do(context.Background(), "generate", func() error {
		calls++
		return context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
