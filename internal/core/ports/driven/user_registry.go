package driven

import (
	"context"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// UserRegistry stores application users keyed by provider identity,
// plus the application sessions issued for them.
// Returns domain.ErrNotFound when a user does not exist.
type UserRegistry interface {
	// GetByProvider retrieves a user by provider identity
	GetByProvider(ctx context.Context, provider domain.ProviderType, providerUserID string) (*domain.User, error)

	// GetByID retrieves a user by internal ID
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// Create stores a new user
	Create(ctx context.Context, user *domain.User) error

	// Update applies a profile patch and returns the updated user
	Update(ctx context.Context, id string, patch *domain.UserPatch) (*domain.User, error)

	// UpdateLastLogin records a successful login
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// CreateSession records an application session for the user
	CreateSession(ctx context.Context, record *domain.SessionRecord) error

	// RevokeUserSessions removes all of the user's application sessions
	// and returns the count removed
	RevokeUserSessions(ctx context.Context, userID string) (int, error)

	// List returns all users
	List(ctx context.Context) ([]*domain.User, error)
}
