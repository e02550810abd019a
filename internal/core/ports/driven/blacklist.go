package driven

import (
	"context"
	"time"
)

// TokenBlacklist records revoked JWT IDs until their natural expiry
// would have passed.
type TokenBlacklist interface {
	// Add records a revoked token ID
	Add(ctx context.Context, jti string, at time.Time) error

	// Contains reports whether the token ID has been revoked
	Contains(ctx context.Context, jti string) (bool, error)

	// Cleanup removes entries recorded before the cutoff and returns
	// the count. Backends with native TTL may implement this as a no-op.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}
