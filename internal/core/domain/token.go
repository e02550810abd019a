package domain

import "time"

// TokenType distinguishes the two halves of an issued pair
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims is the payload of an issued JWT. Wire claim names
// (sub, iss, aud, iat, exp, jti, type, provider, session_id, scope,
// metadata) are a compatibility contract with already-issued tokens.
type TokenClaims struct {
	Subject   string            `json:"sub"`
	Issuer    string            `json:"iss"`
	Audience  string            `json:"aud"`
	IssuedAt  time.Time         `json:"iat"`
	ExpiresAt time.Time         `json:"exp"`
	ID        string            `json:"jti"`
	Type      TokenType         `json:"type"`
	Provider  ProviderType      `json:"provider"`
	SessionID string            `json:"session_id"`
	Scope     []string          `json:"scope,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IsExpired reports whether the token's exp has passed
func (c *TokenClaims) IsExpired() bool {
	return !time.Now().Before(c.ExpiresAt)
}

// ExpiresWithin reports whether the token expires inside the threshold
func (c *TokenClaims) ExpiresWithin(threshold time.Duration) bool {
	return time.Now().Add(threshold).After(c.ExpiresAt)
}

// TokenPair is an access/refresh pair sharing subject, provider, and
// session but carrying distinct token IDs.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // Access token lifetime in seconds
}
