package driving

import (
	"context"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// OAuthService orchestrates the authorization flow: flow start, callback
// handling, and the lifecycle of the provider sessions it creates.
type OAuthService interface {
	// StartFlow begins an authorization flow against a trusted provider.
	// Returns the authorization URL to redirect the user to and the state
	// token that will round-trip through the provider.
	StartFlow(ctx context.Context, req StartFlowRequest) (*StartFlowResponse, error)

	// HandleCallback consumes the state (single-use), exchanges the code
	// for tokens, fetches user info, and stores a provider session.
	// Failures are always *OAuthError values; the call never panics.
	HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)

	// GetSession returns the session, or nil if absent or expired.
	// Expired sessions are evicted lazily; hits bump last access time.
	GetSession(ctx context.Context, id string) (*domain.OAuthSession, error)

	// RefreshSession exchanges the stored refresh token for new provider
	// tokens. On provider failure the session is removed and nil is
	// returned - refresh failure is terminal for that session.
	RefreshSession(ctx context.Context, id string) (*domain.OAuthSession, error)

	// RevokeSession revokes the provider token (best-effort) and deletes
	// the session
	RevokeSession(ctx context.Context, id string) error

	// RevokeUserSessions revokes and deletes all of a user's sessions,
	// returning the count removed
	RevokeUserSessions(ctx context.Context, userID string) (int, error)

	// ListUserSessions lists the user's live sessions
	ListUserSessions(ctx context.Context, userID string) ([]*domain.OAuthSession, error)

	// ListProviders returns the registered, trusted providers
	ListProviders() []domain.ProviderInfo

	// CleanupExpired sweeps both stores for expired entries.
	// Called periodically by the janitor.
	CleanupExpired(ctx context.Context) (states, sessions int)
}

// StartFlowRequest represents a request to start an OAuth flow.
// @Description Request to start OAuth authorization flow
type StartFlowRequest struct {
	// Provider is the identity provider (github, google)
	Provider domain.ProviderType `json:"provider" example:"github"`

	// RedirectURI overrides the provider's configured callback URL
	RedirectURI string `json:"redirect_uri,omitempty" example:"https://app.example.com/callback"`

	// CodeVerifier is the caller-held PKCE verifier. When set, the flow
	// derives an S256 challenge from it. When omitted the flow runs in
	// legacy no-PKCE mode; no verifier is generated on the caller's behalf.
	CodeVerifier string `json:"code_verifier,omitempty"`

	// CodeChallenge optionally pins the expected challenge. If it
	// disagrees with the one derived from CodeVerifier the request is
	// rejected rather than silently substituted.
	CodeChallenge string `json:"code_challenge,omitempty"`
}

// StartFlowResponse contains the authorization URL and state.
// @Description Response containing the OAuth authorization URL
type StartFlowResponse struct {
	// AuthorizationURL is the URL to redirect the user to for authorization.
	AuthorizationURL string `json:"authorization_url" example:"https://github.com/login/oauth/authorize?client_id=..."`

	// State is the CSRF token that will be returned in the callback.
	State string `json:"state" example:"xL8tq0aB3kFh2mPz9cRvYdWn4sJgE6uN1oQiZ5TxVKM"`

	// ExpiresAt is when the authorization state expires (typically 10 minutes).
	ExpiresAt string `json:"expires_at" example:"2025-01-15T10:10:00Z"`
}

// CallbackRequest represents the OAuth callback from the provider.
// @Description OAuth callback parameters from provider redirect
type CallbackRequest struct {
	// Code is the authorization code from the provider.
	Code string `json:"code" example:"abc123"`

	// State is the CSRF token returned by the provider.
	State string `json:"state" example:"xL8tq0aB3kFh2mPz9cRvYdWn4sJgE6uN1oQiZ5TxVKM"`

	// Error is set if the provider returned an error.
	Error string `json:"error,omitempty" example:"access_denied"`

	// ErrorDescription provides details about the error.
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`
}

// CallbackResult identifies the provider session created by a callback.
// @Description Result of a completed OAuth callback
type CallbackResult struct {
	// UserID is the provider's user identifier.
	UserID string `json:"user_id" example:"42"`

	// SessionID identifies the stored provider session.
	SessionID string `json:"session_id" example:"7b1c2e4a-9f3d-4c8b-a15e-2d6f8e0a9b3c"`

	// Provider is the identity provider that authenticated the user.
	Provider domain.ProviderType `json:"provider" example:"github"`

	// UserInfo is the provider's view of the user.
	UserInfo *domain.OAuthUserInfo `json:"user_info,omitempty"`
}

// OAuthError represents an OAuth-specific error.
type OAuthError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description" example:"The state parameter is invalid or expired"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth errors
var (
	ErrOAuthInvalidState     = &OAuthError{Code: "invalid_state", Description: "The state parameter is invalid, expired, or already used"}
	ErrOAuthAccessDenied     = &OAuthError{Code: "access_denied", Description: "The provider denied the authorization request"}
	ErrOAuthExchangeFailed   = &OAuthError{Code: "token_exchange_failed", Description: "Failed to exchange authorization code for tokens"}
	ErrOAuthRefreshFailed    = &OAuthError{Code: "refresh_failed", Description: "Failed to refresh provider tokens"}
	ErrOAuthUserInfoFailed   = &OAuthError{Code: "user_info_failed", Description: "Failed to fetch user information"}
	ErrOAuthValidation       = &OAuthError{Code: "validation_error", Description: "The request parameters failed validation"}
	ErrOAuthProviderNotFound = &OAuthError{Code: "provider_not_found", Description: "The provider is not configured or not trusted"}
	ErrOAuthSessionNotFound  = &OAuthError{Code: "session_not_found", Description: "The session does not exist or has expired"}

	ErrAuthenticationRequired  = &OAuthError{Code: "authentication_required", Description: "Authentication is required for this resource"}
	ErrInsufficientPrivileges  = &OAuthError{Code: "insufficient_privileges", Description: "The caller's role does not allow this action"}
	ErrInsufficientPermissions = &OAuthError{Code: "insufficient_permissions", Description: "The caller lacks a required permission"}
	ErrRateLimitExceeded       = &OAuthError{Code: "rate_limit_exceeded", Description: "The credential exceeded its request budget"}
)
