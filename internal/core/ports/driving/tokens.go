package driving

import (
	"context"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// TokenService issues, validates, and revokes the application JWTs
// bound to provider sessions.
type TokenService interface {
	// GenerateTokenPair issues an access/refresh pair sharing subject,
	// provider, and session ID but carrying distinct token IDs
	GenerateTokenPair(ctx context.Context, userInfo *domain.OAuthUserInfo, sessionID string, session *domain.OAuthSession) (*domain.TokenPair, error)

	// ValidateAccessToken returns the claims of a valid access token,
	// or nil. Any verification failure collapses to nil; no detail
	// about the failure leaks to the caller.
	ValidateAccessToken(ctx context.Context, token string) *domain.TokenClaims

	// ValidateRefreshToken is ValidateAccessToken for refresh tokens
	ValidateRefreshToken(ctx context.Context, token string) *domain.TokenClaims

	// RefreshAccessToken validates the refresh token, blacklists its
	// ID, and issues a rotated pair preserving session and provider
	RefreshAccessToken(ctx context.Context, refreshToken string, userInfo *domain.OAuthUserInfo) (*domain.TokenPair, error)

	// BlacklistToken revokes a token ID until its natural expiry
	BlacklistToken(ctx context.Context, jti string) error

	// CleanupBlacklist prunes blacklist entries whose tokens would
	// have expired anyway. Called periodically by the janitor.
	CleanupBlacklist(ctx context.Context) (int, error)
}
