package log

import (
	"sync"
	"time"
)

// rateLimiter allows at most one log call per distinct message (format
// string, treated as the "category") within window.
type rateLimiter struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func newRateLimiter(window time.Duration) *rateLimiter {
	return &rateLimiter{
		window: window,
		last:   make(map[string]time.Time),
	}
}

func (r *rateLimiter) allow(category string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.last[category]; ok && now.Sub(prev) < r.window {
		return false
	}
	r.last[category] = now
	return true
}
