package driving

import (
	"context"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// AuthnService authenticates inbound requests and manages API keys
type AuthnService interface {
	// AuthenticateRequest resolves a request's identity: Bearer JWT
	// first, then API key, then guest. A present-but-invalid Bearer
	// token fails the request without falling through to later modes.
	// Always returns a result; never panics.
	AuthenticateRequest(ctx context.Context, req Request) domain.AuthResult

	// CreateAPIKey mints a key of the form mcp_<keyId>_<random> and
	// returns the plaintext exactly once alongside the stored record
	CreateAPIKey(ctx context.Context, req CreateAPIKeyRequest) (string, *domain.APIKey, error)

	// RevokeAPIKey deletes a key
	RevokeAPIKey(ctx context.Context, id string) error

	// ListAPIKeys lists keys for a user, or all keys when userID is empty
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)

	// CleanupRateLimiters evicts expired rate-limit windows.
	// Called periodically by the janitor.
	CleanupRateLimiters() int
}

// Request carries the credential material of one inbound request in a
// transport-neutral form. The HTTP adapter fills it from headers and
// query parameters.
type Request struct {
	// Authorization is the raw Authorization header value, if any
	Authorization string

	// APIKeyHeader is the X-API-Key header value, if any
	APIKeyHeader string

	// APIKeyQuery is the api_key query parameter, if any
	APIKeyQuery string
}

// CreateAPIKeyRequest describes a key to mint.
// @Description Request to create an API key
type CreateAPIKeyRequest struct {
	// Name is a human-readable label for the key
	Name string `json:"name" example:"ci-deploy"`

	// UserID is the key owner
	UserID string `json:"user_id" example:"user-123"`

	// Role granted to requests authenticated with this key
	Role domain.Role `json:"role" example:"user"`

	// Permissions granted to requests authenticated with this key
	Permissions []string `json:"permissions,omitempty" example:"read,write"`

	// ExpiresInSeconds optionally bounds the key's lifetime
	ExpiresInSeconds int64 `json:"expires_in_seconds,omitempty" example:"2592000"`

	// RateLimit overrides the default per-key request budget
	RateLimit *domain.RateLimitConfig `json:"rate_limit,omitempty"`
}

// MiddlewareOptions controls how the auth middleware treats a route
type MiddlewareOptions struct {
	// Required rejects unauthenticated requests with 401 when true.
	// Defaults to true; guest access passes only when explicitly false.
	Required *bool

	// AllowedRoles restricts the route to the listed roles
	AllowedRoles []domain.Role

	// RequiredPermissions must all be held by the caller
	RequiredPermissions []string
}

// IsRequired resolves the Required default
func (o MiddlewareOptions) IsRequired() bool {
	return o.Required == nil || *o.Required
}
