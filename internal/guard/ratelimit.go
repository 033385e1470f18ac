// Package guard fronts the public endpoints with API-key checks,
// per-identifier rate limiting and the persisted IP block-list.
package guard

import (
	"sync"
	"time"
)

// RateLimiter tracks request timestamps per identifier and prunes
// entries older than the window before counting. State is process
// local; independent processes keep independent counters. Bursts of up
// to twice the limit are possible across a window boundary, which is
// accepted behavior for this limiter.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter builds an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow prunes timestamps older than window, denies when the pruned
// count has already reached limit, and otherwise records the request.
func (r *RateLimiter) Allow(identifier string, limit int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-window)

	kept := r.buckets[identifier][:0]
	for _, ts := range r.buckets[identifier] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		r.buckets[identifier] = kept
		return false
	}

	r.buckets[identifier] = append(kept, now)
	return true
}

// Reset drops the state for one identifier.
func (r *RateLimiter) Reset(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buckets, identifier)
}
