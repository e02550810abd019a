package driven

import "github.com/riatzukiza/mcp-sub003/internal/core/domain"

// TokenSigner handles JWT cryptographic operations.
// This does NOT handle token lifecycle - blacklisting and rotation
// live in the token service.
type TokenSigner interface {
	// Sign produces a signed token from the given claims
	Sign(claims *domain.TokenClaims) (string, error)

	// Parse verifies signature, issuer, audience, and expiry, and
	// returns the embedded claims
	Parse(token string) (*domain.TokenClaims, error)
}

// SecretHasher handles credential secret hashing.
// Used for the random part of API keys.
type SecretHasher interface {
	HashSecret(secret string) (string, error)
	VerifySecret(secret, hash string) bool
}
