package service

import (
	"context"
	"time"
)

// RateLimiter throttles abuse-prone actions. The auth service consults it
// before any credential work; a denied key returns without touching the
// credential store or the password hasher.
type RateLimiter interface {
	// Allow reports whether one more occurrence of the action identified by
	// key is permitted within the window, and counts it. A storage failure
	// fails open: the action is allowed and the error is returned for
	// logging.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Reset clears the counter for a key. Used when a successful login must
	// not leave failed-attempt state behind.
	Reset(ctx context.Context, key string) error
}
