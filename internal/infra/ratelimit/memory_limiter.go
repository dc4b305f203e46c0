package ratelimit

import (
	"context"
	"sync"
	"time"

	"studytrack/internal/domain/service"
)

type window struct {
	count     int
	expiresAt time.Time
}

// memoryLimiter is a fixed-window limiter for single-node deployments and
// tests. Expired windows are swept lazily on each Allow rather than by a
// timer per entry, so eviction is deterministic and needs no background
// goroutine.
type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	sweepAt time.Time
}

const sweepInterval = time.Minute

// NewMemoryLimiter is the constructor for memoryLimiter.
func NewMemoryLimiter() service.RateLimiter {
	return &memoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts one occurrence for key within the window and reports whether
// the limit is still respected.
func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, windowSize time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	w, ok := l.windows[key]
	if !ok || !w.expiresAt.After(now) {
		w = &window{expiresAt: now.Add(windowSize)}
		l.windows[key] = w
	}

	w.count++

	return w.count <= limit, nil
}

// Reset clears the counter for a key.
func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)

	return nil
}

// maybeSweep drops expired windows at most once per sweepInterval. Called
// with the mutex held.
func (l *memoryLimiter) maybeSweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	l.sweepAt = now.Add(sweepInterval)

	for key, w := range l.windows {
		if !w.expiresAt.After(now) {
			delete(l.windows, key)
		}
	}
}
