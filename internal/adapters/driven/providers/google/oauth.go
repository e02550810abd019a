package google

import (
	"context"
	"encoding/base64"
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
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// Provider handles OAuth operations for Google.
type Provider struct {
	cfg        domain.ProviderConfig
	httpClient *http.Client
}

// New creates a Google provider, filling in endpoint and scope
// defaults for any empty config fields.
func New(cfg domain.ProviderConfig) *Provider {
	cfg.Type = domain.ProviderTypeGoogle
	if cfg.Name == "" {
		cfg.Name = "Google"
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
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = defaultRevokeURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Type returns the provider identifier.
func (p *Provider) Type() domain.ProviderType { return domain.ProviderTypeGoogle }

// Name returns the provider display name.
func (p *Provider) Name() string { return p.cfg.Name }

// GenerateAuthURL constructs the Google authorization URL.
// access_type=offline asks Google to issue a refresh token. The PKCE
// challenge pair is appended only when a verifier is supplied.
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
		"access_type":   {"offline"},
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
		"grant_type":    {"authorization_code"},
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}

	return p.tokenRequest(ctx, params)
}

// RefreshToken exchanges a refresh token for a new access token.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	params := url.Values{
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return p.tokenRequest(ctx, params)
}

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

// GetUserInfo fetches the authenticated user's OpenID Connect profile.
func (p *Provider) GetUserInfo(ctx context.Context, accessToken string) (*domain.OAuthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

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

	id := providers.StringValue(payload, "sub")
	if id == "" {
		id = providers.StringValue(payload, "id")
	}

	info := &domain.OAuthUserInfo{
		ID:        id,
		Email:     providers.StringValue(payload, "email"),
		Name:      providers.StringValue(payload, "name"),
		AvatarURL: providers.StringValue(payload, "picture"),
		Provider:  domain.ProviderTypeGoogle,
		Raw:       payload,
		Metadata:  map[string]string{},
	}
	if providers.BoolValue(payload, "email_verified") {
		info.Metadata["email_verified"] = "true"
	}

	return info, nil
}

// EnrichFromIDToken merges ID-token claims into the user info metadata.
// The token's payload segment is decoded without signature verification;
// the claims only supplement the userinfo response. Failure to decode
// is non-fatal.
func (p *Provider) EnrichFromIDToken(info *domain.OAuthUserInfo, idToken string) {
	if info == nil || idToken == "" {
		return
	}
	claims, err := decodeIDTokenClaims(idToken)
	if err != nil {
		return
	}
	if info.Metadata == nil {
		info.Metadata = map[string]string{}
	}
	for _, key := range []string{"hd", "locale", "given_name", "family_name"} {
		if v := providers.StringValue(claims, key); v != "" {
			info.Metadata[key] = v
		}
	}
	if v, ok := claims["email_verified"].(bool); ok {
		info.Metadata["email_verified"] = strconv.FormatBool(v)
	}
	if info.Email == "" {
		info.Email = providers.StringValue(claims, "email")
	}
}

// decodeIDTokenClaims parses the payload segment of a JWT without
// verifying the signature.
func decodeIDTokenClaims(idToken string) (map[string]any, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed id_token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode id_token payload: %w", err)
	}
	claims := make(map[string]any)
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal id_token claims: %w", err)
	}
	return claims, nil
}

// RevokeToken revokes a token at Google's revocation endpoint.
func (p *Provider) RevokeToken(ctx context.Context, accessToken string) error {
	params := url.Values{"token": {accessToken}}

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.RevokeURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
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

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
