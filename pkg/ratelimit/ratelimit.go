// Package ratelimit bounds how often one client may hit the expensive
// endpoints: blueprint uploads and session opens
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a request identified by key may proceed. A
// non-nil error with allowed=true means the limiter failed open.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, err error)
	Window() time.Duration
}

// SlidingWindowLimiter allows at most limit requests per key within any
// window-long span. State lives in process memory.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewSlidingWindowLimiter creates an in-process limiter
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a request for key when it fits in the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.windows[key], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.windows[key] = recent
		return false, nil
	}
	l.windows[key] = append(recent, now)
	return true, nil
}

// Window returns the span requests are counted over
func (l *SlidingWindowLimiter) Window() time.Duration { return l.window }

// Reset forgets the history of key
func (l *SlidingWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Sweep drops keys with no request inside the window and returns how many
// keys remain
func (l *SlidingWindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.windows {
		if recent := prune(times, cutoff); len(recent) == 0 {
			delete(l.windows, key)
		} else {
			l.windows[key] = recent
		}
	}
	return len(l.windows)
}

// Run sweeps every interval until ctx is done
func (l *SlidingWindowLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// prune keeps the times after cutoff; times are in ascending order
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
