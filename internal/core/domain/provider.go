package domain

// ProviderType identifies an identity provider
type ProviderType string

const (
	ProviderTypeGitHub ProviderType = "github"
	ProviderTypeGoogle ProviderType = "google"
)

// ProviderConfig holds OAuth client configuration for a provider
type ProviderConfig struct {
	Type         ProviderType `json:"type"`
	Name         string       `json:"name"`         // Display name
	AuthURL      string       `json:"auth_url"`     // OAuth authorization URL
	TokenURL     string       `json:"token_url"`    // OAuth token URL
	UserInfoURL  string       `json:"userinfo_url"` // Identity endpoint
	RevokeURL    string       `json:"revoke_url,omitempty"`
	Scopes       []string     `json:"scopes"`
	ClientID     string       `json:"client_id"`
	ClientSecret string       `json:"-"` // Never serialize
	RedirectURL  string       `json:"redirect_url"`
}

// ProviderInfo provides metadata about a registered provider
type ProviderInfo struct {
	Type      ProviderType `json:"type"`
	Name      string       `json:"name"`
	Scopes    []string     `json:"scopes,omitempty"`
	Available bool         `json:"available"`
}
