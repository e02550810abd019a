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
var _ driven.UserRegistry = (*UserRegistry)(nil)

// UserRegistry implements driven.UserRegistry using PostgreSQL.
// Users are keyed by internal ID with a unique provider identity.
type UserRegistry struct {
	db *DB
}

// NewUserRegistry creates a new UserRegistry
func NewUserRegistry(db *DB) *UserRegistry {
	return &UserRegistry{db: db}
}

const userColumns = `id, provider, provider_user_id, email, username, name, avatar_url,
	role, active, created_at, updated_at, last_login_at, metadata`

// GetByProvider retrieves a user by provider identity
func (r *UserRegistry) GetByProvider(ctx context.Context, provider domain.ProviderType, providerUserID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_user_id = $2`
	return r.scanUser(r.db.QueryRowContext(ctx, query, string(provider), providerUserID))
}

// GetByID retrieves a user by internal ID
func (r *UserRegistry) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// Create stores a new user
func (r *UserRegistry) Create(ctx context.Context, user *domain.User) error {
	metadata, err := marshalJSON(user.Metadata)
	if err != nil {
		return fmt.Errorf("marshal user metadata: %w", err)
	}

	query := `
		INSERT INTO users (id, provider, provider_user_id, email, username, name, avatar_url,
			role, active, created_at, updated_at, last_login_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		string(user.Provider),
		user.ProviderUserID,
		user.Email,
		user.Username,
		user.Name,
		user.AvatarURL,
		string(user.Role),
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
		NullTime(user.LastLoginAt),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update applies a profile patch and returns the updated user
func (r *UserRegistry) Update(ctx context.Context, id string, patch *domain.UserPatch) (*domain.User, error) {
	query := `
		UPDATE users SET
			email = COALESCE($2, email),
			username = COALESCE($3, username),
			name = COALESCE($4, name),
			avatar_url = COALESCE($5, avatar_url),
			updated_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		id,
		nullString(patch.Email),
		nullString(patch.Username),
		nullString(patch.Name),
		nullString(patch.AvatarURL),
		time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// UpdateLastLogin records a successful login
func (r *UserRegistry) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateSession records an application session for the user
func (r *UserRegistry) CreateSession(ctx context.Context, record *domain.SessionRecord) error {
	query := `
		INSERT INTO user_sessions (session_id, user_id, provider, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`
	_, err := r.db.ExecContext(ctx, query,
		record.SessionID,
		record.UserID,
		string(record.Provider),
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session record: %w", err)
	}
	return nil
}

// RevokeUserSessions removes all of the user's application sessions
func (r *UserRegistry) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// List returns all users
func (r *UserRegistry) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRegistry) scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var lastLoginAt sql.NullTime
	var metadata []byte

	err := row.Scan(
		&user.ID,
		&user.Provider,
		&user.ProviderUserID,
		&user.Email,
		&user.Username,
		&user.Name,
		&user.AvatarURL,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
		&metadata,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.LastLoginAt = TimePtr(lastLoginAt)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal user metadata: %w", err)
		}
	}
	return &user, nil
}

// marshalJSON marshals a value to JSONB, mapping empty to SQL NULL
func marshalJSON(value any) (any, error) {
	switch v := value.(type) {
	case map[string]string:
		if len(v) == 0 {
			return nil, nil
		}
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	return json.Marshal(value)
}

// nullString converts a string pointer to sql.NullString
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
