package services

import (
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// RateLimiter bounds request counts per credential inside a fixed hour
// window, with an additional minute cap during the window's first
// minute. One instance exists per API key, created lazily by the
// authentication manager.
type RateLimiter struct {
	cfg domain.RateLimitConfig

	mu      sync.Mutex
	entries map[string]*domain.RateLimitEntry
}

// NewRateLimiter creates a rate limiter with the given caps.
func NewRateLimiter(cfg domain.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		entries: make(map[string]*domain.RateLimitEntry),
	}
}

// Allow reports whether a request under the given key fits the budget,
// counting it when it does. The window is anchored at first use and
// resets a full hour later.
//
// The minute cap only binds while the window is under a minute old AND
// at least one request has already been counted: the very first call of
// a fresh hour window is never minute-limited.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.entries[key]
	if !ok || now.After(entry.ResetTime) {
		entry = &domain.RateLimitEntry{
			WindowStart: now,
			ResetTime:   now.Add(time.Hour),
		}
		l.entries[key] = entry
	}

	if now.Sub(entry.WindowStart) < time.Minute && entry.Count > 0 {
		if entry.Count >= l.cfg.RequestsPerMinute {
			return false
		}
	}

	if entry.Count >= l.cfg.RequestsPerHour {
		return false
	}

	entry.Count++
	return true
}

// Cleanup evicts entries whose window has ended, returning the count.
// Invoked via the janitor's periodic tick.
func (l *RateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range l.entries {
		if now.After(entry.ResetTime) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries. Used by tests.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
