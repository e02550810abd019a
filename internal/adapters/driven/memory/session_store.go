package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthSessionStore = (*SessionStore)(nil)

// SessionStoreConfig holds configuration for the in-memory session store.
type SessionStoreConfig struct {
	// SessionTimeout caps the life of sessions without a provider
	// token expiry. Defaults to 24 hours.
	SessionTimeout time.Duration
}

// SessionStore keeps provider sessions in memory.
type SessionStore struct {
	mu             sync.RWMutex
	sessions       map[string]domain.OAuthSession
	sessionTimeout time.Duration
}

// NewSessionStore creates an empty session store
func NewSessionStore(cfg SessionStoreConfig) *SessionStore {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 24 * time.Hour
	}
	return &SessionStore{
		sessions:       make(map[string]domain.OAuthSession),
		sessionTimeout: cfg.SessionTimeout,
	}
}

// Save stores a session, replacing any existing entry with the same ID
func (s *SessionStore) Save(_ context.Context, session *domain.OAuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(_ context.Context, id string) (*domain.OAuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

// Touch updates the session's last access time
func (s *SessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	session.LastAccessAt = at
	s.sessions[id] = session
	return nil
}

// Delete removes a session
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteByUser removes all sessions for a user
func (s *SessionStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// ListByUser lists all stored sessions for a user
func (s *SessionStore) ListByUser(_ context.Context, userID string) ([]*domain.OAuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*domain.OAuthSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			copied := session
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

// Cleanup removes effectively expired sessions
func (s *SessionStore) Cleanup(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.IsExpired(s.sessionTimeout) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
