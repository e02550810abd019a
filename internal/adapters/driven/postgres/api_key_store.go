package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.APIKeyStore = (*APIKeyStore)(nil)

// APIKeyStore implements driven.APIKeyStore using PostgreSQL
type APIKeyStore struct {
	db *DB
}

// NewAPIKeyStore creates a new APIKeyStore
func NewAPIKeyStore(db *DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

const apiKeyColumns = `id, name, user_id, role, permissions, secret_hash, rate_limit,
	expires_at, created_at, last_used_at`

// Save stores a key, replacing any existing entry with the same ID
func (s *APIKeyStore) Save(ctx context.Context, key *domain.APIKey) error {
	permissions, err := marshalJSON(key.Permissions)
	if err != nil {
		return fmt.Errorf("marshal key permissions: %w", err)
	}
	var rateLimit any
	if key.RateLimit != nil {
		rateLimit, err = json.Marshal(key.RateLimit)
		if err != nil {
			return fmt.Errorf("marshal key rate limit: %w", err)
		}
	}

	query := `
		INSERT INTO api_keys (id, name, user_id, role, permissions, secret_hash, rate_limit,
			expires_at, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			permissions = EXCLUDED.permissions,
			secret_hash = EXCLUDED.secret_hash,
			rate_limit = EXCLUDED.rate_limit,
			expires_at = EXCLUDED.expires_at
	`
	_, err = s.db.ExecContext(ctx, query,
		key.ID,
		key.Name,
		key.UserID,
		string(key.Role),
		permissions,
		key.SecretHash,
		rateLimit,
		NullTime(key.ExpiresAt),
		key.CreatedAt,
		NullTime(key.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

// Get retrieves a key by ID
func (s *APIKeyStore) Get(ctx context.Context, id string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return s.scanKey(s.db.QueryRowContext(ctx, query, id))
}

// Delete removes a key
func (s *APIKeyStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns keys for a user, or all keys when userID is empty
func (s *APIKeyStore) List(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		key, err := s.scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// UpdateLastUsed records when the key last authenticated a request
func (s *APIKeyStore) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update key last used: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *APIKeyStore) scanKey(row rowScanner) (*domain.APIKey, error) {
	var key domain.APIKey
	var permissions, rateLimit []byte
	var expiresAt, lastUsedAt sql.NullTime

	err := row.Scan(
		&key.ID,
		&key.Name,
		&key.UserID,
		&key.Role,
		&permissions,
		&key.SecretHash,
		&rateLimit,
		&expiresAt,
		&key.CreatedAt,
		&lastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	key.ExpiresAt = TimePtr(expiresAt)
	key.LastUsedAt = TimePtr(lastUsedAt)
	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &key.Permissions); err != nil {
			return nil, fmt.Errorf("unmarshal key permissions: %w", err)
		}
	}
	if len(rateLimit) > 0 {
		key.RateLimit = &domain.RateLimitConfig{}
		if err := json.Unmarshal(rateLimit, key.RateLimit); err != nil {
			return nil, fmt.Errorf("unmarshal key rate limit: %w", err)
		}
	}
	return &key, nil
}
