package driving

import (
	"context"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// IntegrationService maps provider identities onto application users
// and issues application tokens for them.
type IntegrationService interface {
	// HandleLogin turns a completed callback into an application user:
	// it finds or creates the registry user, refreshes the profile,
	// records the login, and issues a token pair bound to the session.
	HandleLogin(ctx context.Context, callback *CallbackResult) (*LoginResult, error)

	// RevokeUserSessions revokes the user's application sessions and
	// provider sessions, returning the total count removed
	RevokeUserSessions(ctx context.Context, userID string) (int, error)

	// ListUsers returns all registry users. Admin surface.
	ListUsers(ctx context.Context) ([]*domain.UserSummary, error)
}

// LoginResult is the application-facing outcome of a completed login.
// @Description Result of a completed OAuth login
type LoginResult struct {
	// User is the application user the provider identity mapped to.
	User *domain.UserSummary `json:"user"`

	// Tokens is the issued access/refresh pair.
	Tokens *domain.TokenPair `json:"tokens"`

	// SessionID identifies the provider session backing the tokens.
	SessionID string `json:"session_id" example:"7b1c2e4a-9f3d-4c8b-a15e-2d6f8e0a9b3c"`
}
