package github

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

func TestNew_FillsDefaults(t *testing.T) {
	p := New(domain.ProviderConfig{ClientID: "client-1"})

	if p.Type() != domain.ProviderTypeGitHub {
		t.Errorf("expected type github, got %s", p.Type())
	}
	if p.Name() != "GitHub" {
		t.Errorf("expected name GitHub, got %s", p.Name())
	}
	if p.cfg.AuthURL != defaultAuthURL {
		t.Errorf("expected default auth URL, got %s", p.cfg.AuthURL)
	}
	if len(p.cfg.Scopes) == 0 {
		t.Error("expected default scopes")
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
	if q.Get("state") != "state-abc" {
		t.Errorf("expected state state-abc, got %s", q.Get("state"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/callback" {
		t.Errorf("unexpected redirect_uri: %s", q.Get("redirect_uri"))
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

	hash := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(hash[:])

	if q.Get("code_challenge") != want {
		t.Errorf("expected S256 challenge %s, got %s", want, q.Get("code_challenge"))
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("expected challenge method S256, got %s", q.Get("code_challenge_method"))
	}
}

func TestGenerateAuthURL_RedirectOverride(t *testing.T) {
	p := New(domain.ProviderConfig{
		ClientID:    "client-1",
		RedirectURL: "https://app.example.com/callback",
	})

	raw := p.GenerateAuthURL("state-abc", "", "https://other.example.com/cb")

	u, _ := url.Parse(raw)
	if got := u.Query().Get("redirect_uri"); got != "https://other.example.com/cb" {
		t.Errorf("expected override redirect, got %s", got)
	}
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "gho_access",
			"refresh_token": "ghr_refresh",
			"token_type":    "bearer",
			"scope":         "read:user",
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

	if token.AccessToken != "gho_access" {
		t.Errorf("expected access token gho_access, got %s", token.AccessToken)
	}
	if token.RefreshToken != "ghr_refresh" {
		t.Errorf("expected refresh token ghr_refresh, got %s", token.RefreshToken)
	}
	if gotForm.Get("code") != "code-123" {
		t.Errorf("expected code code-123, got %s", gotForm.Get("code"))
	}
	if gotForm.Get("code_verifier") != "verifier-456" {
		t.Errorf("expected verifier forwarded, got %s", gotForm.Get("code_verifier"))
	}
	if gotForm.Get("client_secret") != "secret-1" {
		t.Error("expected client secret in exchange request")
	}
}

func TestExchangeCode_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// GitHub reports errors with a 200 status and an error field
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", TokenURL: srv.URL})

	_, err := p.ExchangeCode(context.Background(), "stale-code", "", "")
	if err == nil {
		t.Fatal("expected error for provider error response")
	}
	if !strings.Contains(err.Error(), "bad_verification_code") {
		t.Errorf("expected provider error code in message, got %v", err)
	}
}

func TestExchangeCode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", TokenURL: srv.URL})

	if _, err := p.ExchangeCode(context.Background(), "code", "", ""); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestGetUserInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_access" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         int64(583231),
			"login":      "octocat",
			"name":       "The Octocat",
			"email":      "fallback@example.com",
			"avatar_url": "https://avatars.example.com/u/583231",
		})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octocat@example.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", UserInfoURL: srv.URL + "/user"})

	info, err := p.GetUserInfo(context.Background(), "gho_access")
	if err != nil {
		t.Fatalf("get user info failed: %v", err)
	}

	if info.ID != "583231" {
		t.Errorf("expected ID 583231, got %s", info.ID)
	}
	if info.Username != "octocat" {
		t.Errorf("expected username octocat, got %s", info.Username)
	}
	if info.Email != "octocat@example.com" {
		t.Errorf("expected primary verified email, got %s", info.Email)
	}
	if info.Provider != domain.ProviderTypeGitHub {
		t.Errorf("expected provider github, got %s", info.Provider)
	}
}

func TestGetUserInfo_EmailFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    int64(1),
			"login": "octocat",
			"email": "fallback@example.com",
		})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(domain.ProviderConfig{ClientID: "client-1", UserInfoURL: srv.URL + "/user"})

	info, err := p.GetUserInfo(context.Background(), "gho_access")
	if err != nil {
		t.Fatalf("get user info failed: %v", err)
	}
	if info.Email != "fallback@example.com" {
		t.Errorf("expected fallback email, got %s", info.Email)
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

func TestRevokeToken(t *testing.T) {
	var gotMethod, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotUser, _, _ = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(domain.ProviderConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RevokeURL:    srv.URL,
	})

	if err := p.RevokeToken(context.Background(), "gho_access"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", gotMethod)
	}
	if gotUser != "client-1" {
		t.Errorf("expected basic auth with client ID, got %s", gotUser)
	}
}
