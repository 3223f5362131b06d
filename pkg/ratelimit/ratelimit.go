// Package ratelimit implements an in-memory token-bucket limiter keyed by
// client. Each key holds up to limit tokens, refilled continuously at
// limit per window.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter is safe for concurrent use. Idle keys are swept during Allow once
// they have been untouched for two windows, so no background goroutine is
// needed.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     float64
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New creates a limiter granting limit requests per window. A non-positive
// limit or window is raised to 1 and one second respectively.
func New(limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   float64(limit),
		window:  window,
		now:     time.Now,
	}
	l.lastSweep = l.now()
	return l
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > 2*l.window {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.limit - 1, lastCheck: now}
		return true
	}

	elapsed := now.Sub(b.lastCheck)
	b.lastCheck = now
	b.tokens = min(l.limit, b.tokens+elapsed.Seconds()*l.limit/l.window.Seconds())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter is the time one token takes to refill.
func (l *Limiter) RetryAfter() time.Duration {
	return time.Duration(float64(l.window) / l.limit)
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.lastCheck.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
