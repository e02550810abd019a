// Package memory provides in-process store implementations backed by
// mutex-guarded maps. They are the default backends for single-instance
// deployments; redis and postgres adapters cover shared deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthStateStore = (*StateStore)(nil)

// StateStore tracks in-flight authorization attempts in memory.
type StateStore struct {
	mu     sync.Mutex
	states map[string]domain.OAuthState
}

// NewStateStore creates an empty state store
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]domain.OAuthState),
	}
}

// Save stores a new OAuth state
func (s *StateStore) Save(_ context.Context, state *domain.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.State] = *state
	return nil
}

// GetAndDelete atomically retrieves and deletes the state. The lock is
// held across lookup and delete so that of two concurrent callers
// presenting the same state, exactly one receives it. Expired states
// are dropped and reported as absent.
func (s *StateStore) GetAndDelete(_ context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[state]
	if !ok {
		return nil, nil
	}
	delete(s.states, state)

	if entry.IsExpired() {
		return nil, nil
	}
	return &entry, nil
}

// Cleanup removes expired states
func (s *StateStore) Cleanup(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.states {
		if now.After(entry.ExpiresAt) {
			delete(s.states, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored states. Used by tests and metrics.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
