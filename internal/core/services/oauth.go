package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/riatzukiza/mcp-sub003/internal/adapters/driven/providers"
	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// Ensure oauthService implements OAuthService
var _ driving.OAuthService = (*oauthService)(nil)

// OAuthServiceConfig holds configuration for the OAuth service.
type OAuthServiceConfig struct {
	// Registry provides OAuth implementations per provider.
	Registry *providers.Registry

	// StateStore tracks in-flight authorization attempts.
	StateStore driven.OAuthStateStore

	// SessionStore persists post-callback provider sessions.
	SessionStore driven.OAuthSessionStore

	// TrustedProviders is the allow-list of providers flows may target.
	// Empty means every registered provider is trusted.
	TrustedProviders []domain.ProviderType

	// StateTimeout bounds how long a started flow stays valid (default: 10m).
	StateTimeout time.Duration

	// SessionTimeout caps sessions without a provider token expiry (default: 24h).
	SessionTimeout time.Duration

	// Logger for best-effort failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// oauthService implements the OAuthService interface.
type oauthService struct {
	registry       *providers.Registry
	stateStore     driven.OAuthStateStore
	sessionStore   driven.OAuthSessionStore
	trusted        map[domain.ProviderType]bool
	stateTimeout   time.Duration
	sessionTimeout time.Duration
	logger         *slog.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stateTimeout := cfg.StateTimeout
	if stateTimeout == 0 {
		stateTimeout = 10 * time.Minute
	}
	sessionTimeout := cfg.SessionTimeout
	if sessionTimeout == 0 {
		sessionTimeout = 24 * time.Hour
	}

	var trusted map[domain.ProviderType]bool
	if len(cfg.TrustedProviders) > 0 {
		trusted = make(map[domain.ProviderType]bool, len(cfg.TrustedProviders))
		for _, p := range cfg.TrustedProviders {
			trusted[p] = true
		}
	}

	return &oauthService{
		registry:       cfg.Registry,
		stateStore:     cfg.StateStore,
		sessionStore:   cfg.SessionStore,
		trusted:        trusted,
		stateTimeout:   stateTimeout,
		sessionTimeout: sessionTimeout,
		logger:         logger,
	}
}

// StartFlow begins an authorization flow against a trusted provider.
// When the caller supplies a PKCE verifier the S256 challenge is derived
// from it; a caller-supplied challenge that disagrees is rejected rather
// than silently substituted. Without a verifier the flow runs in legacy
// no-PKCE mode and nothing is generated on the caller's behalf.
func (s *oauthService) StartFlow(ctx context.Context, req driving.StartFlowRequest) (*driving.StartFlowResponse, error) {
	provider := s.provider(req.Provider)
	if provider == nil {
		return nil, driving.ErrOAuthProviderNotFound
	}

	oauthState := &domain.OAuthState{
		Provider:    req.Provider,
		RedirectURI: req.RedirectURI,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(s.stateTimeout),
	}

	if req.CodeVerifier != "" {
		challenge := providers.CodeChallengeS256(req.CodeVerifier)
		if req.CodeChallenge != "" && req.CodeChallenge != challenge {
			return nil, &driving.OAuthError{
				Code:        "validation_error",
				Description: "code_challenge does not match the challenge derived from code_verifier",
			}
		}
		oauthState.CodeVerifier = req.CodeVerifier
		oauthState.CodeChallenge = challenge
		oauthState.CodeChallengeMethod = "S256"
	} else if req.CodeChallenge != "" {
		// Challenge without verifier: the caller holds the verifier
		// and will present it at token exchange time.
		oauthState.CodeChallenge = req.CodeChallenge
		oauthState.CodeChallengeMethod = "S256"
	}

	state, err := generateStateToken()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	oauthState.State = state

	if err := s.stateStore.Save(ctx, oauthState); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	authURL := provider.GenerateAuthURL(state, req.CodeVerifier, req.RedirectURI)

	return &driving.StartFlowResponse{
		AuthorizationURL: authURL,
		State:            state,
		ExpiresAt:        oauthState.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// HandleCallback consumes the state, exchanges the code for tokens,
// fetches user info, and stores a provider session. The state lookup
// and delete are atomic in the store, so of two concurrent callbacks
// presenting the same state exactly one proceeds. No step is retried.
func (s *oauthService) HandleCallback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResult, error) {
	// Consume the state first: even a denied or failed callback burns it.
	oauthState, err := s.stateStore.GetAndDelete(ctx, req.State)
	if err != nil {
		return nil, fmt.Errorf("get oauth state: %w", err)
	}
	if oauthState == nil {
		return nil, driving.ErrOAuthInvalidState
	}

	if req.Error != "" {
		return nil, &driving.OAuthError{
			Code:        "access_denied",
			Description: fmt.Sprintf("provider %s denied the authorization request (%s)", oauthState.Provider, req.Error),
		}
	}

	provider := s.provider(oauthState.Provider)
	if provider == nil {
		return nil, driving.ErrOAuthProviderNotFound
	}

	token, err := provider.ExchangeCode(ctx, req.Code, oauthState.CodeVerifier, oauthState.RedirectURI)
	if err != nil {
		s.logger.Warn("token exchange failed", "provider", oauthState.Provider, "error", err)
		return nil, driving.ErrOAuthExchangeFailed
	}

	userInfo, err := provider.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		s.logger.Warn("user info fetch failed", "provider", oauthState.Provider, "error", err)
		return nil, driving.ErrOAuthUserInfoFailed
	}

	// OIDC providers supplement the userinfo with ID-token claims.
	// Enrichment failures are silent; the userinfo stays authoritative.
	if enricher, ok := provider.(providers.IDTokenEnricher); ok && token.IDToken != "" {
		enricher.EnrichFromIDToken(userInfo, token.IDToken)
	}

	session := &domain.OAuthSession{
		ID:           uuid.NewString(),
		UserID:       userInfo.ID,
		Provider:     oauthState.Provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		CreatedAt:    time.Now(),
		LastAccessAt: time.Now(),
		Metadata:     userInfo.Metadata,
	}
	if token.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		session.TokenExpiresAt = &expiry
	}

	if err := s.sessionStore.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &driving.CallbackResult{
		UserID:    userInfo.ID,
		SessionID: session.ID,
		Provider:  oauthState.Provider,
		UserInfo:  userInfo,
	}, nil
}

// GetSession returns the session, or nil if absent or expired. Expired
// sessions are evicted lazily; hits bump the last access time.
func (s *oauthService) GetSession(ctx context.Context, id string) (*domain.OAuthSession, error) {
	session, err := s.sessionStore.Get(ctx, id)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.IsExpired(s.sessionTimeout) {
		if err := s.sessionStore.Delete(ctx, id); err != nil {
			s.logger.Warn("evict expired session", "session_id", id, "error", err)
		}
		return nil, nil
	}

	session.LastAccessAt = time.Now()
	if err := s.sessionStore.Touch(ctx, id, session.LastAccessAt); err != nil && err != domain.ErrNotFound {
		s.logger.Warn("touch session", "session_id", id, "error", err)
	}
	return session, nil
}

// RefreshSession exchanges the stored refresh token for new provider
// tokens. Provider failure is terminal for the session: it is removed
// and the caller must start a fresh flow.
func (s *oauthService) RefreshSession(ctx context.Context, id string) (*domain.OAuthSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, driving.ErrOAuthSessionNotFound
	}
	if session.RefreshToken == "" {
		return nil, &driving.OAuthError{
			Code:        "refresh_failed",
			Description: "session has no refresh token",
		}
	}

	provider := s.provider(session.Provider)
	if provider == nil {
		return nil, driving.ErrOAuthProviderNotFound
	}

	token, err := provider.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		s.logger.Warn("session refresh failed, evicting", "session_id", id, "provider", session.Provider, "error", err)
		if delErr := s.sessionStore.Delete(ctx, id); delErr != nil {
			s.logger.Warn("delete session after failed refresh", "session_id", id, "error", delErr)
		}
		return nil, driving.ErrOAuthRefreshFailed
	}

	session.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		session.RefreshToken = token.RefreshToken
	}
	session.TokenExpiresAt = nil
	if token.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		session.TokenExpiresAt = &expiry
	}
	session.LastAccessAt = time.Now()

	if err := s.sessionStore.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save refreshed session: %w", err)
	}
	return session, nil
}

// RevokeSession revokes the provider token (best-effort) and deletes
// the session. A failed provider revoke never blocks logout.
func (s *oauthService) RevokeSession(ctx context.Context, id string) error {
	session, err := s.sessionStore.Get(ctx, id)
	if err == domain.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	s.revokeProviderToken(ctx, session)
	return s.sessionStore.Delete(ctx, id)
}

// RevokeUserSessions revokes and deletes all of a user's sessions.
func (s *oauthService) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	sessions, err := s.sessionStore.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		s.revokeProviderToken(ctx, session)
	}
	return s.sessionStore.DeleteByUser(ctx, userID)
}

// ListUserSessions lists the user's live sessions, skipping any that
// have effectively expired.
func (s *oauthService) ListUserSessions(ctx context.Context, userID string) ([]*domain.OAuthSession, error) {
	sessions, err := s.sessionStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	live := sessions[:0]
	for _, session := range sessions {
		if !session.IsExpired(s.sessionTimeout) {
			live = append(live, session)
		}
	}
	return live, nil
}

// ListProviders returns the registered, trusted providers.
func (s *oauthService) ListProviders() []domain.ProviderInfo {
	infos := s.registry.Infos()
	if s.trusted == nil {
		return infos
	}
	filtered := infos[:0]
	for _, info := range infos {
		if s.trusted[info.Type] {
			filtered = append(filtered, info)
		}
	}
	return filtered
}

// CleanupExpired sweeps both stores for expired entries.
func (s *oauthService) CleanupExpired(ctx context.Context) (int, int) {
	states, err := s.stateStore.Cleanup(ctx)
	if err != nil {
		s.logger.Warn("state store cleanup failed", "error", err)
	}
	sessions, err := s.sessionStore.Cleanup(ctx)
	if err != nil {
		s.logger.Warn("session store cleanup failed", "error", err)
	}
	return states, sessions
}

// provider resolves a registered, trusted provider or nil.
func (s *oauthService) provider(providerType domain.ProviderType) providers.Provider {
	if s.trusted != nil && !s.trusted[providerType] {
		return nil
	}
	return s.registry.Get(providerType)
}

// revokeProviderToken is the deliberately best-effort half of logout:
// the provider error is logged and dropped so a failed revoke never
// blocks session deletion.
func (s *oauthService) revokeProviderToken(ctx context.Context, session *domain.OAuthSession) {
	provider := s.registry.Get(session.Provider)
	if provider == nil {
		return
	}
	if err := provider.RevokeToken(ctx, session.AccessToken); err != nil {
		s.logger.Warn("provider token revoke failed", "session_id", session.ID, "provider", session.Provider, "error", err)
	}
}

// generateStateToken produces a 256-bit random token in base64url form
// (43 characters, no padding).
func generateStateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
