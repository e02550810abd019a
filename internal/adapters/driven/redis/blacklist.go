package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TokenBlacklist = (*Blacklist)(nil)

const blacklistPrefix = "token:blacklist:"

// Blacklist implements driven.TokenBlacklist using Redis. Each revoked
// token ID lives for the retention period, after which the token would
// have expired on its own anyway.
type Blacklist struct {
	client    *redis.Client
	retention time.Duration
}

// NewBlacklist creates a Redis-backed token blacklist. Retention should
// be at least the longest token lifetime (default: 7 days).
func NewBlacklist(client *redis.Client, retention time.Duration) *Blacklist {
	if retention == 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Blacklist{client: client, retention: retention}
}

// Add records a revoked token ID.
func (b *Blacklist) Add(ctx context.Context, jti string, at time.Time) error {
	if err := b.client.Set(ctx, blacklistPrefix+jti, at.Format(time.RFC3339Nano), b.retention).Err(); err != nil {
		return fmt.Errorf("blacklist token %s: %w", jti, err)
	}
	return nil
}

// Contains reports whether the token ID has been revoked.
func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	count, err := b.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return count > 0, nil
}

// Cleanup is a no-op: Redis TTL removes aged entries natively.
func (b *Blacklist) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}
