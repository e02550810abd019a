package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TokenBlacklist = (*Blacklist)(nil)

// Blacklist records revoked JWT IDs in memory.
type Blacklist struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewBlacklist creates an empty blacklist
func NewBlacklist() *Blacklist {
	return &Blacklist{
		revoked: make(map[string]time.Time),
	}
}

// Add records a revoked token ID
func (b *Blacklist) Add(_ context.Context, jti string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = at
	return nil
}

// Contains reports whether the token ID has been revoked
func (b *Blacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.revoked[jti]
	return ok, nil
}

// Cleanup removes entries recorded before the cutoff
func (b *Blacklist) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for jti, at := range b.revoked {
		if at.Before(olderThan) {
			delete(b.revoked, jti)
			removed++
		}
	}
	return removed, nil
}
