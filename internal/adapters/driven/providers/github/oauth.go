package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/providers"
	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// Ensure Provider implements the interface.
var _ providers.Provider = (*Provider)(nil)

const (
	defaultAuthURL     = "https://github.com/login/oauth/authorize"
	defaultTokenURL    = "https://github.com/login/oauth/access_token"
	defaultUserInfoURL = "https://api.github.com/user"
)

// Provider handles OAuth operations for GitHub.
type Provider struct {
	cfg        domain.ProviderConfig
	httpClient *http.Client
}

// New creates a GitHub provider, filling in endpoint and scope
// defaults for any empty config fields.
func New(cfg domain.ProviderConfig) *Provider {
	cfg.Type = domain.ProviderTypeGitHub
	if cfg.Name == "" {
		cfg.Name = "GitHub"
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user", "user:email"}
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Type returns the provider identifier.
func (p *Provider) Type() domain.ProviderType { return domain.ProviderTypeGitHub }

// Name returns the provider display name.
func (p *Provider) Name() string { return p.cfg.Name }

// GenerateAuthURL constructs the GitHub authorization URL.
// The PKCE challenge pair is appended only when a verifier is supplied.
func (p *Provider) GenerateAuthURL(state, codeVerifier, redirectURI string) string {
	if redirectURI == "" {
		redirectURI = p.cfg.RedirectURL
	}
	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"scope":         {strings.Join(p.cfg.Scopes, " ")},
		"response_type": {"code"},
	}
	if codeVerifier != "" {
		params.Set("code_challenge", providers.CodeChallengeS256(codeVerifier))
		params.Set("code_challenge_method", "S256")
	}
	return p.cfg.AuthURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*domain.OAuthToken, error) {
	if redirectURI == "" {
		redirectURI = p.cfg.RedirectURL
	}
	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}

	return p.tokenRequest(ctx, params)
}

// RefreshToken refreshes an expired access token.
// Note: classic GitHub OAuth tokens don't expire; GitHub Apps use refresh tokens.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return p.tokenRequest(ctx, params)
}

// tokenRequest posts form-encoded params to the token endpoint and
// decodes the response.
func (p *Provider) tokenRequest(ctx context.Context, params url.Values) (*domain.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.TokenURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token request failed: status %d: %s", resp.StatusCode, string(body))
	}

	payload, err := providers.DecodeJSONBody(resp.Body)
	if err != nil {
		return nil, err
	}
	return providers.TokenFromPayload(payload)
}

// GetUserInfo fetches the authenticated user, then issues a secondary
// request to the email-listing endpoint. The primary verified address
// wins; the user record's email is the fallback.
func (p *Provider) GetUserInfo(ctx context.Context, accessToken string) (*domain.OAuthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get user info failed: status %d", resp.StatusCode)
	}

	payload, err := providers.DecodeJSONBody(resp.Body)
	if err != nil {
		return nil, err
	}

	info := &domain.OAuthUserInfo{
		ID:        strconv.FormatInt(providers.Int64Value(payload, "id"), 10),
		Username:  providers.StringValue(payload, "login"),
		Name:      providers.StringValue(payload, "name"),
		Email:     providers.StringValue(payload, "email"),
		AvatarURL: providers.StringValue(payload, "avatar_url"),
		Provider:  domain.ProviderTypeGitHub,
		Raw:       payload,
	}

	if email := p.fetchPrimaryEmail(ctx, accessToken); email != "" {
		info.Email = email
	}

	return info, nil
}

// fetchPrimaryEmail queries the email-listing endpoint for the primary
// verified address. Failures fall back to the user record's email.
func (p *Provider) fetchPrimaryEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.UserInfoURL+"/emails", nil)
	if err != nil {
		return ""
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&emails); err != nil {
		return ""
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

// RevokeToken revokes an access token via the applications API.
// GitHub expects basic auth with the client credentials.
func (p *Provider) RevokeToken(ctx context.Context, accessToken string) error {
	revokeURL := p.cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = "https://api.github.com/applications/" + p.cfg.ClientID + "/token"
	}

	payload, err := json.Marshal(map[string]string{"access_token": accessToken})
	if err != nil {
		return fmt.Errorf("marshal revoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "DELETE", revokeURL, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke failed: status %d", resp.StatusCode)
	}
	return nil
}

// ValidateToken checks the token against the identity endpoint.
// Any network failure counts as invalid.
func (p *Provider) ValidateToken(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.UserInfoURL, nil)
	if err != nil {
		return false
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
