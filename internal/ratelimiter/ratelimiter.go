package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a single token bucket wrapping golang.org/x/time/rate.
//
// Tokens are added at requestsPerSecond and the bucket holds up to burst
// tokens. Each request consumes one token.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// Special cases:
//   - requestsPerSecond = 0: No rate limiting (unlimited)
//   - burst = 0: burst equals requestsPerSecond, so one second worth of
//     requests can be served at once
//
// Example:
//
//	// Allow 20 req/s sustained, 40 at once
//	limiter := New(20, 40)
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current number of available tokens. Useful for
// monitoring; the value may change immediately after the call.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// client is one bucket of a KeyedLimiter.
type client struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key, typically a client address.
//
// Buckets are created on first use and dropped by Prune once idle for
// longer than the idle timeout.
//
// Thread safety:
// All methods are safe for concurrent use.
type KeyedLimiter struct {
	requestsPerSecond uint
	burst             uint
	idle              time.Duration

	mu      sync.Mutex
	clients map[string]*client
	now     func() time.Time
}

// NewKeyed creates a KeyedLimiter. A zero requestsPerSecond disables
// limiting and no bucket is ever allocated.
//
// Parameters:
//   - requestsPerSecond: Sustained rate per key
//   - burst: Bucket capacity per key (0 = requestsPerSecond)
//   - idle: How long an unused bucket survives Prune (0 = 5 minutes)
func NewKeyed(requestsPerSecond, burst uint, idle time.Duration) *KeyedLimiter {
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &KeyedLimiter{
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		idle:              idle,
		clients:           make(map[string]*client),
		now:               time.Now,
	}
}

// Unlimited reports whether the limiter lets everything through.
func (k *KeyedLimiter) Unlimited() bool {
	return k.requestsPerSecond == 0
}

func (k *KeyedLimiter) bucket(key string) *RateLimiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	c, ok := k.clients[key]
	if !ok {
		c = &client{limiter: New(k.requestsPerSecond, k.burst)}
		k.clients[key] = c
	}
	c.lastSeen = k.now()
	return c.limiter
}

// Allow consumes a token from the bucket of key.
func (k *KeyedLimiter) Allow(key string) bool {
	if k.Unlimited() {
		return true
	}
	return k.bucket(key).Allow()
}

// Wait blocks until the bucket of key has a token or ctx is done.
func (k *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if k.Unlimited() {
		return ctx.Err()
	}
	return k.bucket(key).Wait(ctx)
}

// Prune drops buckets idle since before now minus the idle timeout and
// returns how many were removed.
func (k *KeyedLimiter) Prune(now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, c := range k.clients {
		if now.Sub(c.lastSeen) > k.idle {
			delete(k.clients, key)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked buckets.
func (k *KeyedLimiter) Clients() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.clients)
}

// Run prunes idle buckets every interval until ctx is done.
func (k *KeyedLimiter) Run(ctx context.Context, interval time.Duration) {
	if k.Unlimited() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			k.Prune(now)
		}
	}
}
