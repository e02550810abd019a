package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Ensure Adapter implements both crypto ports
var (
	_ driven.TokenSigner  = (*Adapter)(nil)
	_ driven.SecretHasher = (*Adapter)(nil)
)

// jwtClaims wraps domain.TokenClaims for JWT compatibility.
// Registered claim names (sub, iss, aud, iat, exp, jti) come from
// RegisteredClaims; the remainder are private claims.
type jwtClaims struct {
	Type      domain.TokenType    `json:"type"`
	Provider  domain.ProviderType `json:"provider"`
	SessionID string              `json:"session_id"`
	Scope     []string            `json:"scope,omitempty"`
	Metadata  map[string]string   `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the signing parameters. Issuer and audience are owned
// by the adapter: Sign stamps them, Parse enforces them.
type Config struct {
	Secret   string
	Issuer   string
	Audience string

	// BcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int
}

// Adapter handles JWT signing/parsing and secret hashing
type Adapter struct {
	secret     []byte
	issuer     string
	audience   string
	bcryptCost int
}

// NewAdapter creates an auth adapter from config
func NewAdapter(cfg Config) *Adapter {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Adapter{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		bcryptCost: cost,
	}
}

// HashSecret generates a bcrypt hash from a plaintext secret
func (a *Adapter) HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), a.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret checks if a secret matches a bcrypt hash
func (a *Adapter) VerifySecret(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}

// Sign creates a signed JWT from domain claims
func (a *Adapter) Sign(claims *domain.TokenClaims) (string, error) {
	jc := jwtClaims{
		Type:      claims.Type,
		Provider:  claims.Provider,
		SessionID: claims.SessionID,
		Scope:     claims.Scope,
		Metadata:  claims.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	return token.SignedString(a.secret)
}

// Parse validates a JWT's signature, issuer, audience, and expiry,
// and extracts domain claims
func (a *Adapter) Parse(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithAudience(a.audience))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	out := &domain.TokenClaims{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Type:      claims.Type,
		Provider:  claims.Provider,
		SessionID: claims.SessionID,
		Scope:     claims.Scope,
		Metadata:  claims.Metadata,
		ID:        claims.ID,
	}
	if len(claims.Audience) > 0 {
		out.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
