package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UserRegistry = (*UserRegistry)(nil)

// UserRegistry keeps application users and their session records in
// memory.
type UserRegistry struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	byProv   map[string]string // provider+providerUserID -> userID
	sessions map[string]domain.SessionRecord
}

// NewUserRegistry creates an empty registry
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		users:    make(map[string]domain.User),
		byProv:   make(map[string]string),
		sessions: make(map[string]domain.SessionRecord),
	}
}

func providerKey(provider domain.ProviderType, providerUserID string) string {
	return string(provider) + ":" + providerUserID
}

// GetByProvider retrieves a user by provider identity
func (r *UserRegistry) GetByProvider(_ context.Context, provider domain.ProviderType, providerUserID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byProv[providerKey(provider, providerUserID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user := r.users[id]
	return &user, nil
}

// GetByID retrieves a user by internal ID
func (r *UserRegistry) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

// Create stores a new user
func (r *UserRegistry) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return domain.ErrAlreadyExists
	}
	key := providerKey(user.Provider, user.ProviderUserID)
	if _, ok := r.byProv[key]; ok {
		return domain.ErrAlreadyExists
	}

	r.users[user.ID] = *user
	r.byProv[key] = user.ID
	return nil
}

// Update applies a profile patch and returns the updated user
func (r *UserRegistry) Update(_ context.Context, id string, patch *domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.AvatarURL != nil {
		user.AvatarURL = *patch.AvatarURL
	}
	user.UpdatedAt = time.Now()

	r.users[id] = user
	return &user, nil
}

// UpdateLastLogin records a successful login
func (r *UserRegistry) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	user.LastLoginAt = &at
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

// CreateSession records an application session for the user
func (r *UserRegistry) CreateSession(_ context.Context, record *domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[record.SessionID] = *record
	return nil
}

// RevokeUserSessions removes all of the user's application sessions
func (r *UserRegistry) RevokeUserSessions(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, record := range r.sessions {
		if record.UserID == userID {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// List returns all users
func (r *UserRegistry) List(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		copied := user
		users = append(users, &copied)
	}
	return users, nil
}
