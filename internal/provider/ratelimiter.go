package provider

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket sized for free aggregator tiers: a small
// burst up front, then one call per refill interval.
type RateLimiter struct {
	mu       sync.Mutex
	capacity int
	tokens   int
	every    time.Duration
	last     time.Time
}

// NewRateLimiter allows bursts of maxTokens and refills one token every
// refillInterval.
func NewRateLimiter(maxTokens int, refillInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		capacity: maxTokens,
		tokens:   maxTokens,
		every:    refillInterval,
		last:     time.Now(),
	}
}

// Wait takes a token, blocking until one refills or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.take() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.every):
		}
	}
}

func (r *RateLimiter) take() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	refilled := int(time.Since(r.last) / r.every)
	if refilled > 0 {
		r.tokens += refilled
		if r.tokens > r.capacity {
			r.tokens = r.capacity
		}
		r.last = r.last.Add(time.Duration(refilled) * r.every)
	}

	if r.tokens == 0 {
		return false
	}
	r.tokens--
	return true
}
