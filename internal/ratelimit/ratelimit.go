// Package ratelimit implements fixed-window request counters keyed by a
// route prefix and the client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the state of a key after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts a hit for key and reports whether it is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Key builds the counter key for a route prefix and client IP.
func Key(prefix, clientIP string) string {
	if clientIP == "" {
		clientIP = "unknown"
	}
	return prefix + ":" + clientIP
}

type window struct {
	count   int
	resetAt time.Time
}

// sweepThreshold bounds how many keys accumulate before expired ones are dropped.
const sweepThreshold = 10000

// MemoryLimiter is a per-process fixed-window counter. Counts are not shared
// between instances and are lost on restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  windowSize,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.entries[key]
	if !ok || !now.Before(w.resetAt) {
		if len(l.entries) >= sweepThreshold {
			l.sweep(now)
		}
		w = &window{resetAt: now.Add(l.window)}
		l.entries[key] = w
	}
	w.count++

	remaining := l.limit - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   w.count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}, nil
}

// Reset clears the counter for key.
func (l *MemoryLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, k)
		}
	}
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
