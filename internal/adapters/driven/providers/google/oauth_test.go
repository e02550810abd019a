package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/providers"
	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// fakeIDToken builds an unsigned JWT-shaped token carrying the claims.
func fakeIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return "header." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestNew_FillsDefaults(t *testing.T) {
	p := New(domain.ProviderConfig{ClientID: "client-1"})

	if p.Type() != domain.ProviderTypeGoogle {
		t.Errorf("expected type google, got %s", p.Type())
	}
	if p.Name() != "Google" {
		t.Errorf("expected name Google, got %s", p.Name())
	}
	if p.cfg.AuthURL != defaultAuthURL {
		t.Errorf("expected default auth URL, got %s", p.cfg.AuthURL)
	}
	if len(p.cfg.Scopes) != 3 {
		t.Errorf("expected openid/email/profile scopes, got %v", p.cfg.Scopes)
	}
}

func TestGenerateAuthURL(t *testing.T) {
	p := New(domain.ProviderConfig{
		ClientID:    "client-1",
		RedirectURL: "https://app.example.com/callback",
	})

	raw := p.GenerateAuthURL("state-abc", "", "")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse auth URL: %v", err)
	}
	q := u.Query()

	if q.Get("client_id") != "client-1" {
		t.Errorf("expected client_id client-1, got %s", q.Get("client_id"))
	}
	if q.Get("access_type") != "offline" {
		t.Errorf("expected access_type offline, got %s", q.Get("access_type"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("expected response_type code, got %s", q.Get("response_type"))
	}
	if q.Get("code_challenge") != "" {
		t.Error("expected no PKCE challenge without a verifier")
	}
}

func TestGenerateAuthURL_PKCE(t *testing.T) {
	p := New(domain.ProviderConfig{ClientID: "client-1"})

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	raw := p.GenerateAuthURL("state-abc", verifier, "")

	u, _ := url.Parse(raw)
	q := u.Query()

	if q.Get("code_challenge") != providers.CodeChallengeS256(verifier) {
		t.Errorf("expected S256 challenge, got %s", q.Get("code_challenge"))
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("expected challenge method S256, got %s", q.Get("code_challenge_method"))
	}
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ya29.access",
			"refresh_token": "1//refresh",
			"id_token":      "header.payload.sig",
			"token_type":    "Bearer",
			"expires_in":    3599,
		})
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		TokenURL:     srv.URL,
	})

	token, err := p.ExchangeCode(context.Background(), "code-123", "verifier-456", "https://cb")
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if token.AccessToken != "ya29.access" {
		t.Errorf("expected access token ya29.access, got %s", token.AccessToken)
	}
	if token.IDToken != "header.payload.sig" {
		t.Errorf("expected id_token carried through, got %s", token.IDToken)
	}
	if gotForm.Get("grant_type") != "authorization_code" {
		t.Errorf("expected grant_type authorization_code, got %s", gotForm.Get("grant_type"))
	}
	if gotForm.Get("code_verifier") != "verifier-456" {
		t.Errorf("expected verifier forwarded, got %s", gotForm.Get("code_verifier"))
	}
}

func TestExchangeCode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", TokenURL: srv.URL})

	if _, err := p.ExchangeCode(context.Background(), "stale-code", "", ""); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestGetUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.access" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "110248495921238986420",
			"email":          "alice@example.com",
			"email_verified": true,
			"name":           "Alice Example",
			"picture":        "https://lh3.example.com/photo.jpg",
		})
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", UserInfoURL: srv.URL})

	info, err := p.GetUserInfo(context.Background(), "ya29.access")
	if err != nil {
		t.Fatalf("get user info failed: %v", err)
	}

	if info.ID != "110248495921238986420" {
		t.Errorf("expected OIDC sub as ID, got %s", info.ID)
	}
	if info.Email != "alice@example.com" {
		t.Errorf("expected email, got %s", info.Email)
	}
	if info.Provider != domain.ProviderTypeGoogle {
		t.Errorf("expected provider google, got %s", info.Provider)
	}
	if info.Metadata["email_verified"] != "true" {
		t.Errorf("expected email_verified metadata, got %v", info.Metadata)
	}
}

func TestEnrichFromIDToken(t *testing.T) {
	p := New(domain.ProviderConfig{ClientID: "client-1"})

	idToken := fakeIDToken(t, map[string]any{
		"hd":             "example.com",
		"locale":         "en",
		"given_name":     "Alice",
		"family_name":    "Example",
		"email":          "alice@example.com",
		"email_verified": true,
	})

	info := &domain.OAuthUserInfo{ID: "1", Provider: domain.ProviderTypeGoogle}
	p.EnrichFromIDToken(info, idToken)

	want := map[string]string{
		"hd":             "example.com",
		"locale":         "en",
		"given_name":     "Alice",
		"family_name":    "Example",
		"email_verified": "true",
	}
	for k, v := range want {
		if info.Metadata[k] != v {
			t.Errorf("expected metadata %s=%s, got %q", k, v, info.Metadata[k])
		}
	}
	if info.Email != "alice@example.com" {
		t.Errorf("expected email filled from claims, got %s", info.Email)
	}
}

func TestEnrichFromIDToken_KeepsExistingEmail(t *testing.T) {
	p := New(domain.ProviderConfig{ClientID: "client-1"})

	idToken := fakeIDToken(t, map[string]any{"email": "claims@example.com"})

	info := &domain.OAuthUserInfo{ID: "1", Email: "userinfo@example.com"}
	p.EnrichFromIDToken(info, idToken)

	if info.Email != "userinfo@example.com" {
		t.Errorf("expected userinfo email to win, got %s", info.Email)
	}
}

func TestEnrichFromIDToken_MalformedTokenIsNonFatal(t *testing.T) {
	p := New(domain.ProviderConfig{ClientID: "client-1"})

	for _, idToken := range []string{
		"not-a-jwt",
		"one.two",
		"a.!!!not-base64!!!.c",
		"a." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c",
	} {
		info := &domain.OAuthUserInfo{ID: "1", Email: "kept@example.com"}
		p.EnrichFromIDToken(info, idToken)

		if info.Email != "kept@example.com" {
			t.Errorf("token %q: expected email untouched, got %s", idToken, info.Email)
		}
		if len(info.Metadata) != 0 {
			t.Errorf("token %q: expected no metadata, got %v", idToken, info.Metadata)
		}
	}
}

func TestRevokeToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotToken = r.PostForm.Get("token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", RevokeURL: srv.URL})

	if err := p.RevokeToken(context.Background(), "ya29.access"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if gotToken != "ya29.access" {
		t.Errorf("expected revoked token in form body, got %s", gotToken)
	}
}

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", UserInfoURL: srv.URL})

	if !p.ValidateToken(context.Background(), "good") {
		t.Error("expected valid token to pass")
	}
	if p.ValidateToken(context.Background(), "bad") {
		t.Error("expected invalid token to fail")
	}
}
