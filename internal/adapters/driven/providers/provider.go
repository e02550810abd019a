package providers

import (
	"context"
	"crypto/sha256"
	"encoding/base64"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// Provider performs OAuth operations against one identity provider.
// Each variant (GitHub, Google) has its own implementation constructed
// from a domain.ProviderConfig.
type Provider interface {
	// GenerateAuthURL constructs the authorization URL for a flow.
	// A PKCE code_challenge/S256 pair is appended only when a verifier
	// is supplied; without one the URL is a legacy no-PKCE request.
	// redirectURI overrides the configured callback when non-empty.
	GenerateAuthURL(state, codeVerifier, redirectURI string) string

	// ExchangeCode exchanges an authorization code for tokens.
	// Fails on non-2xx responses and on provider error fields.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*domain.OAuthToken, error)

	// GetUserInfo fetches the authenticated user's identity.
	// Fails on non-2xx responses.
	GetUserInfo(ctx context.Context, accessToken string) (*domain.OAuthUserInfo, error)

	// RefreshToken exchanges a refresh token for new tokens
	RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error)

	// RevokeToken invalidates a token at the provider. Callers treat
	// the returned error as best-effort: logged, never propagated.
	RevokeToken(ctx context.Context, accessToken string) error

	// ValidateToken checks a token against the provider's identity
	// endpoint. Network failure counts as invalid (fail-closed).
	ValidateToken(ctx context.Context, accessToken string) bool

	// Type returns the provider identifier
	Type() domain.ProviderType

	// Name returns the provider display name
	Name() string
}

// IDTokenEnricher is implemented by providers that can supplement
// user info with claims from an OpenID Connect ID token. Enrichment
// failures are silent; the userinfo response remains authoritative.
type IDTokenEnricher interface {
	EnrichFromIDToken(info *domain.OAuthUserInfo, idToken string)
}

// CodeChallengeS256 derives a PKCE code challenge from a verifier
// using the S256 method.
func CodeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
