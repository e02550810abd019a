package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.APIKeyStore = (*APIKeyStore)(nil)

// APIKeyStore keeps API key records in memory.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]domain.APIKey
}

// NewAPIKeyStore creates an empty key store
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{
		keys: make(map[string]domain.APIKey),
	}
}

// Save stores a key, replacing any existing entry with the same ID
func (s *APIKeyStore) Save(_ context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = *key
	return nil
}

// Get retrieves a key by ID
func (s *APIKeyStore) Get(_ context.Context, id string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &key, nil
}

// Delete removes a key
func (s *APIKeyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

// List returns keys for a user, or all keys when userID is empty
func (s *APIKeyStore) List(_ context.Context, userID string) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*domain.APIKey
	for _, key := range s.keys {
		if userID != "" && key.UserID != userID {
			continue
		}
		copied := key
		keys = append(keys, &copied)
	}
	return keys, nil
}

// UpdateLastUsed records when the key last authenticated a request
func (s *APIKeyStore) UpdateLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return domain.ErrNotFound
	}
	key.LastUsedAt = &at
	s.keys[id] = key
	return nil
}
