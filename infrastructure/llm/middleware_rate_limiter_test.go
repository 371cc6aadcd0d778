package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimitMiddleware_SpacesRequests(t *testing.T) {
	// Given 20 requests per second with no burst headroom
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(20), 1)(mock)

	// When three requests are made back to back
	start := time.Now()
	for range 3 {
		_, err := wrapped.DoRequest(context.Background(), Request{})
		require.NoError(t, err)
	}

	// Then at least two intervals elapsed
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	gap := mock.GetTimeBetweenCalls(0, 1)
	require.NotNil(t, gap)
	assert.GreaterOrEqual(t, *gap, 40*time.Millisecond)
}

func TestRateLimitMiddleware_BurstPassesImmediately(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(1), 5)(mock)

	start := time.Now()
	for range 5 {
		_, err := wrapped.DoRequest(context.Background(), Request{})
		require.NoError(t, err)
	}

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 5, mock.GetCallCount())
}

func TestRateLimitMiddleware_CancelledWait(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(0.001), 1)(mock)

	_, err := wrapped.DoRequest(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = wrapped.DoRequest(ctx, Request{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, mock.GetCallCount())
}
