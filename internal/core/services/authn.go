package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driving"
)

// Ensure authnService implements AuthnService
var _ driving.AuthnService = (*authnService)(nil)

// apiKeyPrefix is the fixed first segment of every issued key.
const apiKeyPrefix = "mcp"

// AuthnServiceConfig holds configuration for the authentication manager.
type AuthnServiceConfig struct {
	// Keys persists API key records.
	Keys driven.APIKeyStore

	// Tokens validates Bearer JWTs. This is the manager's own token
	// service with its own secret/issuer/audience.
	Tokens driving.TokenService

	// Hasher hashes and verifies API key secrets.
	Hasher driven.SecretHasher

	// DefaultRateLimit applies to keys without a per-key override
	// (default: 60/min, 1000/h).
	DefaultRateLimit domain.RateLimitConfig

	// Logger for best-effort failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// authnService implements the AuthnService interface.
type authnService struct {
	keys        driven.APIKeyStore
	tokens      driving.TokenService
	hasher      driven.SecretHasher
	defaultRate domain.RateLimitConfig
	logger      *slog.Logger

	// limiters is the lazily-grown per-key RateLimiter cache.
	limitersMu sync.Mutex
	limiters   map[string]*RateLimiter
}

// NewAuthnService creates a new authentication manager.
func NewAuthnService(cfg AuthnServiceConfig) driving.AuthnService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rate := cfg.DefaultRateLimit
	if rate.RequestsPerMinute == 0 {
		rate.RequestsPerMinute = 60
	}
	if rate.RequestsPerHour == 0 {
		rate.RequestsPerHour = 1000
	}
	return &authnService{
		keys:        cfg.Keys,
		tokens:      cfg.Tokens,
		hasher:      cfg.Hasher,
		defaultRate: rate,
		logger:      logger,
		limiters:    make(map[string]*RateLimiter),
	}
}

// AuthenticateRequest resolves a request's identity: Bearer JWT first,
// then API key, then guest. A present Authorization header commits the
// request to the JWT path; an invalid token there fails the request
// without falling through to API key or guest. Always returns a value.
func (s *authnService) AuthenticateRequest(ctx context.Context, req driving.Request) domain.AuthResult {
	if req.Authorization != "" {
		return s.authenticateJWT(ctx, req.Authorization)
	}

	rawKey := req.APIKeyHeader
	if rawKey == "" {
		rawKey = req.APIKeyQuery
	}
	if rawKey != "" {
		return s.authenticateAPIKey(ctx, rawKey)
	}

	// Guest access is the default, not a failure.
	return domain.AuthResult{
		Success:     true,
		UserID:      "anonymous",
		Role:        domain.RoleGuest,
		Permissions: []string{},
		Method:      domain.AuthMethodNone,
	}
}

// authenticateJWT verifies a Bearer access token against this manager's
// own token service. Role comes from the token's metadata (default
// "user"); permissions come from the scope claim.
func (s *authnService) authenticateJWT(ctx context.Context, authorization string) domain.AuthResult {
	failure := domain.AuthResult{
		Success:   false,
		Method:    domain.AuthMethodJWT,
		Error:     "Invalid or expired token",
		ErrorCode: domain.AuthErrorInvalidToken,
	}

	token := bearerToken(authorization)
	if token == "" {
		return failure
	}

	claims := s.tokens.ValidateAccessToken(ctx, token)
	if claims == nil {
		return failure
	}

	role := domain.RoleUser
	if r, ok := claims.Metadata["role"]; ok && r != "" {
		role = domain.Role(r)
	}

	return domain.AuthResult{
		Success:     true,
		UserID:      claims.Subject,
		Role:        role,
		Permissions: claims.Scope,
		Method:      domain.AuthMethodJWT,
		SessionID:   claims.SessionID,
	}
}

// authenticateAPIKey resolves a key of the form mcp_<keyId>_<random>,
// checks expiry and the secret hash, and applies the key's rate limiter.
func (s *authnService) authenticateAPIKey(ctx context.Context, rawKey string) domain.AuthResult {
	failure := domain.AuthResult{
		Success:   false,
		Method:    domain.AuthMethodAPIKey,
		Error:     "Invalid API key",
		ErrorCode: domain.AuthErrorInvalidKey,
	}

	keyID, secret, ok := splitAPIKey(rawKey)
	if !ok {
		return failure
	}

	key, err := s.keys.Get(ctx, keyID)
	if err != nil {
		return failure
	}
	if key.IsExpired() {
		failure.Error = "API key expired"
		failure.ErrorCode = domain.AuthErrorKeyExpired
		return failure
	}
	if !s.hasher.VerifySecret(secret, key.SecretHash) {
		return failure
	}

	if !s.limiterFor(key).Allow(key.ID) {
		return domain.AuthResult{
			Success:   false,
			Method:    domain.AuthMethodAPIKey,
			KeyID:     key.ID,
			Error:     "Rate limit exceeded",
			ErrorCode: domain.AuthErrorRateLimited,
		}
	}

	if err := s.keys.UpdateLastUsed(ctx, key.ID, time.Now()); err != nil {
		s.logger.Warn("update key last used", "key_id", key.ID, "error", err)
	}

	return domain.AuthResult{
		Success:     true,
		UserID:      key.UserID,
		Role:        key.Role,
		Permissions: key.Permissions,
		Method:      domain.AuthMethodAPIKey,
		KeyID:       key.ID,
	}
}

// CreateAPIKey mints a key and returns the plaintext exactly once.
func (s *authnService) CreateAPIKey(ctx context.Context, req driving.CreateAPIKeyRequest) (string, *domain.APIKey, error) {
	if req.Name == "" || req.UserID == "" {
		return "", nil, domain.ErrInvalidInput
	}

	keyID, err := randomHex(4)
	if err != nil {
		return "", nil, fmt.Errorf("generate key id: %w", err)
	}
	secret, err := randomHex(16)
	if err != nil {
		return "", nil, fmt.Errorf("generate key secret: %w", err)
	}
	hash, err := s.hasher.HashSecret(secret)
	if err != nil {
		return "", nil, fmt.Errorf("hash key secret: %w", err)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	key := &domain.APIKey{
		ID:          keyID,
		Name:        req.Name,
		UserID:      req.UserID,
		Role:        role,
		Permissions: req.Permissions,
		SecretHash:  hash,
		RateLimit:   req.RateLimit,
		CreatedAt:   time.Now(),
	}
	if req.ExpiresInSeconds > 0 {
		expiry := time.Now().Add(time.Duration(req.ExpiresInSeconds) * time.Second)
		key.ExpiresAt = &expiry
	}

	if err := s.keys.Save(ctx, key); err != nil {
		return "", nil, fmt.Errorf("save api key: %w", err)
	}

	plaintext := apiKeyPrefix + "_" + keyID + "_" + secret
	return plaintext, key, nil
}

// RevokeAPIKey deletes a key and drops its rate limiter.
func (s *authnService) RevokeAPIKey(ctx context.Context, id string) error {
	if err := s.keys.Delete(ctx, id); err != nil {
		return err
	}
	s.limitersMu.Lock()
	delete(s.limiters, id)
	s.limitersMu.Unlock()
	return nil
}

// ListAPIKeys lists keys for a user, or all keys when userID is empty.
func (s *authnService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return s.keys.List(ctx, userID)
}

// CleanupRateLimiters evicts expired rate-limit windows across all
// cached limiters.
func (s *authnService) CleanupRateLimiters() int {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	removed := 0
	for _, limiter := range s.limiters {
		removed += limiter.Cleanup()
	}
	return removed
}

// limiterFor returns the key's cached rate limiter, creating it lazily
// with the key's own caps or the configured defaults.
func (s *authnService) limiterFor(key *domain.APIKey) *RateLimiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	limiter, ok := s.limiters[key.ID]
	if !ok {
		cfg := s.defaultRate
		if key.RateLimit != nil {
			cfg = *key.RateLimit
		}
		limiter = NewRateLimiter(cfg)
		s.limiters[key.ID] = limiter
	}
	return limiter
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(authorization string) string {
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// splitAPIKey parses mcp_<keyId>_<random> into its parts.
func splitAPIKey(rawKey string) (keyID, secret string, ok bool) {
	parts := strings.Split(rawKey, "_")
	if len(parts) != 3 || parts[0] != apiKeyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// randomHex returns n random bytes hex-encoded (2n characters).
func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
