package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	for i := range 5 {
		allowed, err := limiter.Allow(ctx, "login:a@example.com", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "login:a@example.com", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "attempt over the limit should be denied")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	for range 3 {
		_, err := limiter.Allow(ctx, "login:a@example.com", 2, time.Minute)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(ctx, "login:b@example.com", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiter_ResetClearsWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	for range 3 {
		_, err := limiter.Allow(ctx, "login:a@example.com", 2, time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, "login:a@example.com"))

	allowed, err := limiter.Allow(ctx, "login:a@example.com", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiter_WindowExpires(t *testing.T) {
	limiter := NewMemoryLimiter().(*memoryLimiter)
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	for range 3 {
		_, err := limiter.Allow(ctx, "reset:a@example.com", 2, time.Minute)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(ctx, "reset:a@example.com", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	// A fresh window starts once the old one has lapsed.
	current = current.Add(2 * time.Minute)
	allowed, err = limiter.Allow(ctx, "reset:a@example.com", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
