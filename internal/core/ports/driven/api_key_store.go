package driven

import (
	"context"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// APIKeyStore persists API key records.
// Returns domain.ErrNotFound when a key does not exist.
type APIKeyStore interface {
	// Save stores a key, replacing any existing entry with the same ID
	Save(ctx context.Context, key *domain.APIKey) error

	// Get retrieves a key by ID
	Get(ctx context.Context, id string) (*domain.APIKey, error)

	// Delete removes a key
	Delete(ctx context.Context, id string) error

	// List returns keys for a user, or all keys when userID is empty
	List(ctx context.Context, userID string) ([]*domain.APIKey, error)

	// UpdateLastUsed records when the key last authenticated a request
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
}
