package driven

import (
	"context"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// OAuthSessionStore handles provider session persistence.
// Returns domain.ErrNotFound when a session does not exist.
type OAuthSessionStore interface {
	// Save stores a session, replacing any existing entry with the same ID
	Save(ctx context.Context, session *domain.OAuthSession) error

	// Get retrieves a session by ID. Expiry is the caller's concern.
	Get(ctx context.Context, id string) (*domain.OAuthSession, error)

	// Touch updates the session's last access time
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes a session
	Delete(ctx context.Context, id string) error

	// DeleteByUser removes all sessions for a user and returns the count
	DeleteByUser(ctx context.Context, userID string) (int, error)

	// ListByUser lists all stored sessions for a user
	ListByUser(ctx context.Context, userID string) ([]*domain.OAuthSession, error)

	// Cleanup removes effectively expired sessions and returns the count.
	// Backends with native TTL may implement this as a no-op.
	Cleanup(ctx context.Context) (int, error)
}
