package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// Ensure integrationService implements IntegrationService
var _ driving.IntegrationService = (*integrationService)(nil)

// IntegrationServiceConfig holds configuration for the integration service.
type IntegrationServiceConfig struct {
	// Registry holds application users and their sessions.
	Registry driven.UserRegistry

	// OAuth resolves and revokes provider sessions.
	OAuth driving.OAuthService

	// Tokens issues the application token pairs.
	Tokens driving.TokenService

	// Logger for best-effort failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// integrationService implements the IntegrationService interface.
type integrationService struct {
	registry driven.UserRegistry
	oauth    driving.OAuthService
	tokens   driving.TokenService
	logger   *slog.Logger
}

// NewIntegrationService creates a new integration service.
func NewIntegrationService(cfg IntegrationServiceConfig) driving.IntegrationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &integrationService{
		registry: cfg.Registry,
		oauth:    cfg.OAuth,
		tokens:   cfg.Tokens,
		logger:   logger,
	}
}

// HandleLogin maps a completed callback onto an application user and
// issues a token pair bound to the provider session.
func (s *integrationService) HandleLogin(ctx context.Context, callback *driving.CallbackResult) (*driving.LoginResult, error) {
	if callback == nil || callback.UserInfo == nil {
		return nil, domain.ErrInvalidInput
	}
	userInfo := callback.UserInfo

	user, err := s.registry.GetByProvider(ctx, callback.Provider, userInfo.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		user, err = s.createUser(ctx, callback.Provider, userInfo)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("get user by provider: %w", err)
	default:
		user, err = s.refreshProfile(ctx, user, userInfo)
		if err != nil {
			return nil, fmt.Errorf("update user profile: %w", err)
		}
	}

	if !user.Active {
		return nil, domain.ErrForbidden
	}

	if err := s.registry.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("update last login", "user_id", user.ID, "error", err)
	}

	session, err := s.oauth.GetSession(ctx, callback.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, driving.ErrOAuthSessionNotFound
	}

	// The token's role claim rides in the userinfo metadata so the
	// authentication manager can recover it without a registry lookup.
	if userInfo.Metadata == nil {
		userInfo.Metadata = make(map[string]string)
	}
	userInfo.Metadata["role"] = string(user.Role)

	pair, err := s.tokens.GenerateTokenPair(ctx, userInfo, callback.SessionID, session)
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	record := &domain.SessionRecord{
		SessionID: callback.SessionID,
		UserID:    user.ID,
		Provider:  callback.Provider,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt(24 * time.Hour),
	}
	if err := s.registry.CreateSession(ctx, record); err != nil {
		s.logger.Warn("record application session", "user_id", user.ID, "error", err)
	}

	return &driving.LoginResult{
		User:      user.ToSummary(),
		Tokens:    pair,
		SessionID: callback.SessionID,
	}, nil
}

// RevokeUserSessions revokes the user's application and provider
// sessions, returning the total count removed.
func (s *integrationService) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	appSessions, err := s.registry.RevokeUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke application sessions: %w", err)
	}
	providerSessions, err := s.oauth.RevokeUserSessions(ctx, userID)
	if err != nil {
		return appSessions, fmt.Errorf("revoke provider sessions: %w", err)
	}
	return appSessions + providerSessions, nil
}

// ListUsers returns summaries of all registry users.
func (s *integrationService) ListUsers(ctx context.Context) ([]*domain.UserSummary, error) {
	users, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	summaries := make([]*domain.UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, user.ToSummary())
	}
	return summaries, nil
}

// createUser builds a registry user from the provider's view.
func (s *integrationService) createUser(ctx context.Context, provider domain.ProviderType, userInfo *domain.OAuthUserInfo) (*domain.User, error) {
	now := time.Now()
	user := &domain.User{
		ID:             uuid.NewString(),
		Provider:       provider,
		ProviderUserID: userInfo.ID,
		Email:          userInfo.Email,
		Username:       userInfo.Username,
		Name:           userInfo.Name,
		AvatarURL:      userInfo.AvatarURL,
		Role:           domain.RoleUser,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       userInfo.Metadata,
	}
	if err := s.registry.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// refreshProfile patches the profile fields that changed since the
// last login. No-op when nothing changed.
func (s *integrationService) refreshProfile(ctx context.Context, user *domain.User, userInfo *domain.OAuthUserInfo) (*domain.User, error) {
	patch := &domain.UserPatch{}
	changed := false
	if userInfo.Email != "" && userInfo.Email != user.Email {
		patch.Email = &userInfo.Email
		changed = true
	}
	if userInfo.Username != "" && userInfo.Username != user.Username {
		patch.Username = &userInfo.Username
		changed = true
	}
	if userInfo.Name != "" && userInfo.Name != user.Name {
		patch.Name = &userInfo.Name
		changed = true
	}
	if userInfo.AvatarURL != "" && userInfo.AvatarURL != user.AvatarURL {
		patch.AvatarURL = &userInfo.AvatarURL
		changed = true
	}
	if !changed {
		return user, nil
	}
	return s.registry.Update(ctx, user.ID, patch)
}
