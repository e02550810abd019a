package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

// TokenServiceConfig holds configuration for the token service.
type TokenServiceConfig struct {
	// Signer performs the JWT cryptographic operations.
	Signer driven.TokenSigner

	// Blacklist records revoked token IDs.
	Blacklist driven.TokenBlacklist

	// AccessTokenExpiry is the access token lifetime (default: 15m).
	AccessTokenExpiry time.Duration

	// RefreshTokenExpiry is the refresh token lifetime (default: 7d).
	RefreshTokenExpiry time.Duration

	// Logger for best-effort failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// tokenService implements the TokenService interface.
type tokenService struct {
	signer        driven.TokenSigner
	blacklist     driven.TokenBlacklist
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	logger        *slog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(cfg TokenServiceConfig) driving.TokenService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	accessExpiry := cfg.AccessTokenExpiry
	if accessExpiry == 0 {
		accessExpiry = 15 * time.Minute
	}
	refreshExpiry := cfg.RefreshTokenExpiry
	if refreshExpiry == 0 {
		refreshExpiry = 7 * 24 * time.Hour
	}
	return &tokenService{
		signer:        cfg.Signer,
		blacklist:     cfg.Blacklist,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		logger:        logger,
	}
}

// GenerateTokenPair issues an access/refresh pair sharing subject,
// provider, and session ID but carrying distinct token IDs.
func (s *tokenService) GenerateTokenPair(ctx context.Context, userInfo *domain.OAuthUserInfo, sessionID string, session *domain.OAuthSession) (*domain.TokenPair, error) {
	now := time.Now()
	scopes := extractScopes(userInfo)

	base := domain.TokenClaims{
		Subject:   userInfo.ID,
		Provider:  userInfo.Provider,
		SessionID: sessionID,
		IssuedAt:  now,
		Scope:     scopes,
		Metadata:  userInfo.Metadata,
	}

	accessClaims := base
	accessClaims.ID = uuid.NewString()
	accessClaims.Type = domain.TokenTypeAccess
	accessClaims.ExpiresAt = now.Add(s.accessExpiry)

	refreshClaims := base
	refreshClaims.ID = uuid.NewString()
	refreshClaims.Type = domain.TokenTypeRefresh
	refreshClaims.ExpiresAt = now.Add(s.refreshExpiry)

	accessToken, err := s.signer.Sign(&accessClaims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.signer.Sign(&refreshClaims)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessExpiry.Seconds()),
	}, nil
}

// ValidateAccessToken returns the claims of a valid access token, or nil.
func (s *tokenService) ValidateAccessToken(ctx context.Context, token string) *domain.TokenClaims {
	return s.validate(ctx, token, domain.TokenTypeAccess)
}

// ValidateRefreshToken returns the claims of a valid refresh token, or nil.
func (s *tokenService) ValidateRefreshToken(ctx context.Context, token string) *domain.TokenClaims {
	return s.validate(ctx, token, domain.TokenTypeRefresh)
}

// validate collapses every verification failure to nil. The signer
// already enforces signature, issuer, audience, and expiry; this layer
// adds the type check and the blacklist check.
func (s *tokenService) validate(ctx context.Context, token string, want domain.TokenType) *domain.TokenClaims {
	if token == "" {
		return nil
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil
	}
	if claims.Type != want {
		return nil
	}
	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil || revoked {
		return nil
	}
	return claims
}

// RefreshAccessToken validates the refresh token, blacklists its ID,
// and issues a rotated pair preserving session and provider.
func (s *tokenService) RefreshAccessToken(ctx context.Context, refreshToken string, userInfo *domain.OAuthUserInfo) (*domain.TokenPair, error) {
	claims := s.ValidateRefreshToken(ctx, refreshToken)
	if claims == nil {
		return nil, domain.ErrTokenInvalid
	}

	// Rotation: the presented refresh token is spent.
	if err := s.BlacklistToken(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("blacklist rotated token: %w", err)
	}

	session := &domain.OAuthSession{
		ID:       claims.SessionID,
		UserID:   claims.Subject,
		Provider: claims.Provider,
	}
	return s.GenerateTokenPair(ctx, userInfo, claims.SessionID, session)
}

// BlacklistToken revokes a token ID until its natural expiry.
func (s *tokenService) BlacklistToken(ctx context.Context, jti string) error {
	if jti == "" {
		return domain.ErrInvalidInput
	}
	return s.blacklist.Add(ctx, jti, time.Now())
}

// CleanupBlacklist prunes entries older than the longest token lifetime;
// anything older would have expired on its own by now.
func (s *tokenService) CleanupBlacklist(ctx context.Context) (int, error) {
	retention := s.refreshExpiry
	if s.accessExpiry > retention {
		retention = s.accessExpiry
	}
	return s.blacklist.Cleanup(ctx, time.Now().Add(-retention))
}

// extractScopes derives the scope claim from the provider's view of the
// user. Pure and deterministic: sorted, de-duplicated.
func extractScopes(userInfo *domain.OAuthUserInfo) []string {
	set := map[string]bool{"read": true}
	if userInfo.Username != "" || userInfo.Name != "" {
		set["profile"] = true
	}
	if userInfo.Email != "" {
		set["email"] = true
	}
	scopes := make([]string, 0, len(set))
	for scope := range set {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}
