package domain

import "time"

// OAuthState tracks one in-flight authorization attempt. It binds the
// anti-CSRF state token to the PKCE material and redirect URI the flow
// started with, and is consumed exactly once by the callback.
type OAuthState struct {
	State               string       `json:"state"`
	Provider            ProviderType `json:"provider"`
	RedirectURI         string       `json:"redirect_uri,omitempty"`
	CodeVerifier        string       `json:"-"` // Never serialize
	CodeChallenge       string       `json:"code_challenge,omitempty"`
	CodeChallengeMethod string       `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	ExpiresAt           time.Time    `json:"expires_at"`
}

// IsExpired checks if the authorization attempt has expired
func (s *OAuthState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// OAuthSession represents a post-callback provider session holding the
// tokens obtained from the identity provider.
type OAuthSession struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Provider       ProviderType      `json:"provider"`
	AccessToken    string            `json:"-"` // Never serialize
	RefreshToken   string            `json:"-"` // Never serialize
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessAt   time.Time         `json:"last_access_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ExpiresAt returns the session's effective expiry: the provider token
// expiry when known, otherwise CreatedAt plus the given session timeout.
func (s *OAuthSession) ExpiresAt(sessionTimeout time.Duration) time.Time {
	if s.TokenExpiresAt != nil {
		return *s.TokenExpiresAt
	}
	return s.CreatedAt.Add(sessionTimeout)
}

// IsExpired checks the effective expiry against the current time
func (s *OAuthSession) IsExpired(sessionTimeout time.Duration) bool {
	return time.Now().After(s.ExpiresAt(sessionTimeout))
}

// OAuthToken is a provider token response
type OAuthToken struct {
	AccessToken  string         `json:"-"` // Never serialize
	RefreshToken string         `json:"-"` // Never serialize
	IDToken      string         `json:"-"` // Never serialize
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in,omitempty"` // Seconds
	Scope        string         `json:"scope,omitempty"`
	Raw          map[string]any `json:"-"`
}

// OAuthUserInfo is the provider's view of the authenticated user.
// Produced only by a provider's GetUserInfo.
type OAuthUserInfo struct {
	ID        string            `json:"id"`
	Username  string            `json:"username,omitempty"`
	Email     string            `json:"email,omitempty"`
	Name      string            `json:"name,omitempty"`
	AvatarURL string            `json:"avatar_url,omitempty"`
	Provider  ProviderType      `json:"provider"`
	Raw       map[string]any    `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DisplayName returns the best human-readable name available
func (u *OAuthUserInfo) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
