package domain

import "time"

// Role defines the caller's permission level
type Role string

const (
	RoleAdmin Role = "admin" // Manage users and API keys
	RoleUser  Role = "user"  // Authenticated provider identity
	RoleGuest Role = "guest" // Unauthenticated default
)

// User is an application user record keyed by provider identity
type User struct {
	ID             string            `json:"id"`
	Provider       ProviderType      `json:"provider"`
	ProviderUserID string            `json:"provider_user_id"`
	Email          string            `json:"email,omitempty"`
	Username       string            `json:"username,omitempty"`
	Name           string            `json:"name,omitempty"`
	AvatarURL      string            `json:"avatar_url,omitempty"`
	Role           Role              `json:"role"`
	Active         bool              `json:"active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	LastLoginAt    *time.Time        `json:"last_login_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// UserPatch carries the profile fields refreshed on each login
type UserPatch struct {
	Email     *string `json:"email,omitempty"`
	Username  *string `json:"username,omitempty"`
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// UserSummary provides a safe view of user data
type UserSummary struct {
	ID          string       `json:"id"`
	Provider    ProviderType `json:"provider"`
	Email       string       `json:"email,omitempty"`
	Username    string       `json:"username,omitempty"`
	Name        string       `json:"name,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	Role        Role         `json:"role"`
	Active      bool         `json:"active"`
	LastLoginAt *time.Time   `json:"last_login_at,omitempty"`
}

// ToSummary converts a User to UserSummary
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:          u.ID,
		Provider:    u.Provider,
		Email:       u.Email,
		Username:    u.Username,
		Name:        u.Name,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		Active:      u.Active,
		LastLoginAt: u.LastLoginAt,
	}
}

// IsAdmin checks if the user has admin privileges
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SessionRecord is the registry's view of an application session,
// kept for listing and bulk revocation
type SessionRecord struct {
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	Provider  ProviderType `json:"provider"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}
