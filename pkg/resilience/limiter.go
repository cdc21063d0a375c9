// Package resilience holds the cooperative throttle and bounded retry policy
// shared by the embedding and chat providers.
package resilience

import (
	"context"
	"sync"
	"time"
)

// Operation keys used by the providers.
const (
	OpEmbed = "embed"
	OpChat  = "chat"
)

// RateLimiter is a sliding-window limiter keyed by logical operation. Callers
// block in Wait until the window for their key admits them.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Wait blocks until a slot is free for key or ctx ends.
func (l *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		delay := l.reserve(key)
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a hit and returns 0, or returns how long until the oldest
// hit leaves the window.
func (l *RateLimiter) reserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	hits := l.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) < l.limit {
		l.hits[key] = append(hits, now)
		return 0
	}
	l.hits[key] = hits
	return hits[0].Add(l.window).Sub(now)
}
