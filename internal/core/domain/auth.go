package domain

import "time"

// AuthMethod identifies how a request was authenticated
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
	AuthMethodNone   AuthMethod = "none"
)

// AuthErrorCode classifies an authentication failure for callers that
// branch on the cause; Error stays the human-readable message.
type AuthErrorCode string

const (
	AuthErrorInvalidToken AuthErrorCode = "invalid_token"
	AuthErrorInvalidKey   AuthErrorCode = "invalid_api_key"
	AuthErrorKeyExpired   AuthErrorCode = "api_key_expired"
	AuthErrorRateLimited  AuthErrorCode = "rate_limit_exceeded"
)

// AuthResult is the outcome of authenticating an inbound request.
// It is always returned as a value; authentication never panics.
type AuthResult struct {
	Success     bool          `json:"success"`
	UserID      string        `json:"user_id,omitempty"`
	Role        Role          `json:"role,omitempty"`
	Permissions []string      `json:"permissions,omitempty"`
	Method      AuthMethod    `json:"method"`
	SessionID   string        `json:"session_id,omitempty"`
	KeyID       string        `json:"key_id,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorCode   AuthErrorCode `json:"error_code,omitempty"`
}

// AuthContext carries the resolved identity through request handling
type AuthContext struct {
	UserID      string     `json:"user_id"`
	Role        Role       `json:"role"`
	Permissions []string   `json:"permissions,omitempty"`
	Method      AuthMethod `json:"method"`
	SessionID   string     `json:"session_id,omitempty"`
	KeyID       string     `json:"key_id,omitempty"`
}

// IsAdmin checks if the authenticated caller is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HasPermission checks if the caller holds the given permission
func (a *AuthContext) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Context converts a successful AuthResult into an AuthContext
func (r *AuthResult) Context() *AuthContext {
	if !r.Success {
		return nil
	}
	return &AuthContext{
		UserID:      r.UserID,
		Role:        r.Role,
		Permissions: r.Permissions,
		Method:      r.Method,
		SessionID:   r.SessionID,
		KeyID:       r.KeyID,
	}
}

// RateLimitConfig bounds request counts for one credential
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
}

// RateLimitEntry is the per-key counter state for one fixed window.
// Created lazily on first use; reset when the window's ResetTime passes.
type RateLimitEntry struct {
	Count       int
	WindowStart time.Time
	ResetTime   time.Time
}

// APIKey is a long-lived credential of the form mcp_<keyId>_<random>.
// Only a bcrypt hash of the random part is stored; the plaintext is
// returned exactly once at creation time.
type APIKey struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	UserID      string           `json:"user_id"`
	Role        Role             `json:"role"`
	Permissions []string         `json:"permissions,omitempty"`
	SecretHash  string           `json:"-"` // Never serialize
	RateLimit   *RateLimitConfig `json:"rate_limit,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	LastUsedAt  *time.Time       `json:"last_used_at,omitempty"`
}

// IsExpired checks the key's optional expiry. Keys without an expiry
// never expire.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}
