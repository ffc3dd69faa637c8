package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "low rate", requestsPerSecond: 1, burst: 2},
		{name: "default burst", requestsPerSecond: 5, burst: 0},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			require.NotNil(t, limiter)
			require.NotNil(t, limiter.limiter)
			assert.True(t, limiter.Allow())
		})
	}
}

// TestAllow verifies that Allow() enforces the burst.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(), "request %d should be allowed (within burst)", i)
	}
	assert.False(t, limiter.Allow(), "request beyond burst should be rejected")
}

func TestAllow_DefaultBurst(t *testing.T) {
	limiter := New(3, 0)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow())
	}
	assert.False(t, limiter.Allow())
}

func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 10_000; i++ {
		require.True(t, limiter.Allow())
	}
}

// TestWait verifies Wait respects context cancellation.
func TestWait(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestKeyedLimiter_IndependentBuckets(t *testing.T) {
	k := NewKeyed(2, 2, time.Minute)

	assert.True(t, k.Allow("10.0.0.1"))
	assert.True(t, k.Allow("10.0.0.1"))
	assert.False(t, k.Allow("10.0.0.1"))

	// Another client is unaffected.
	assert.True(t, k.Allow("10.0.0.2"))
	assert.Equal(t, 2, k.Clients())
}

func TestKeyedLimiter_Unlimited(t *testing.T) {
	k := NewKeyed(0, 0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, k.Allow("client"))
	}
	assert.True(t, k.Unlimited())
	assert.Equal(t, 0, k.Clients())
}

func TestKeyedLimiter_Prune(t *testing.T) {
	k := NewKeyed(1, 1, time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	k.now = func() time.Time { return base }
	k.Allow("old")

	k.now = func() time.Time { return base.Add(50 * time.Second) }
	k.Allow("fresh")

	removed := k.Prune(base.Add(90 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, k.Clients())
}

func TestKeyedLimiter_Wait(t *testing.T) {
	k := NewKeyed(1, 1, time.Minute)
	require.NoError(t, k.Wait(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, k.Wait(ctx, "a"))
}
