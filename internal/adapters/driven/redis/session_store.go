package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OAuthSessionStore = (*SessionStore)(nil)

const (
	sessionPrefix     = "oauth:session:"
	sessionUserPrefix = "oauth:session:user:"
)

// sessionSecrets is the encrypted half of a stored session. The domain
// type never serializes its tokens, so they travel in this sealed blob.
type sessionSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// sessionEnvelope is the persisted shape: public session fields as JSON
// plus the AES-GCM sealed token material.
type sessionEnvelope struct {
	Session *domain.OAuthSession `json:"session"`
	Secrets []byte               `json:"secrets"`
}

// SessionStore implements driven.OAuthSessionStore using Redis.
// Sessions expire via native TTL derived from their effective expiry;
// provider tokens are encrypted at rest.
type SessionStore struct {
	client         *redis.Client
	cipher         *TokenCipher
	sessionTimeout time.Duration
}

// NewSessionStore creates a Redis-backed session store. The cipher is
// required; the session timeout caps sessions without a provider token
// expiry (default: 24h).
func NewSessionStore(client *redis.Client, cipher *TokenCipher, sessionTimeout time.Duration) *SessionStore {
	if sessionTimeout == 0 {
		sessionTimeout = 24 * time.Hour
	}
	return &SessionStore{
		client:         client,
		cipher:         cipher,
		sessionTimeout: sessionTimeout,
	}
}

// Save stores a session with TTL based on its effective expiry.
func (s *SessionStore) Save(ctx context.Context, session *domain.OAuthSession) error {
	ttl := time.Until(session.ExpiresAt(s.sessionTimeout))
	if ttl <= 0 {
		// Already expired, nothing to store
		return nil
	}

	data, err := s.marshal(session)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionPrefix+session.ID, data, ttl)
	pipe.SAdd(ctx, sessionUserPrefix+session.UserID, session.ID)
	pipe.Expire(ctx, sessionUserPrefix+session.UserID, s.sessionTimeout+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID. Expiry is the caller's concern; Redis
// TTL only guarantees eventual removal.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.OAuthSession, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s.unmarshal(data)
}

// Touch updates the session's last access time without resetting its TTL.
func (s *SessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	session.LastAccessAt = at

	data, err := s.marshal(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionPrefix+id, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Delete removes a session and its user set membership.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err == domain.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, sessionPrefix+id)
	pipe.SRem(ctx, sessionUserPrefix+session.UserID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUser removes all sessions for a user and returns the count.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	setKey := sessionUserPrefix + userID
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	removed := 0
	for _, id := range ids {
		deleted, err := s.client.Del(ctx, sessionPrefix+id).Result()
		if err != nil {
			return removed, fmt.Errorf("delete session %s: %w", id, err)
		}
		removed += int(deleted)
	}
	s.client.Del(ctx, setKey)
	return removed, nil
}

// ListByUser lists the user's stored sessions, pruning references to
// sessions Redis has already expired.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]*domain.OAuthSession, error) {
	setKey := sessionUserPrefix + userID
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	var sessions []*domain.OAuthSession
	var stale []interface{}
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err == domain.ErrNotFound {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		s.client.SRem(ctx, setKey, stale...)
	}
	return sessions, nil
}

// Cleanup prunes user set references to sessions Redis expired on its
// own. The sessions themselves are removed by native TTL.
func (s *SessionStore) Cleanup(ctx context.Context) (int, error) {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionUserPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan user session sets: %w", err)
		}
		for _, setKey := range keys {
			ids, err := s.client.SMembers(ctx, setKey).Result()
			if err != nil {
				continue
			}
			var stale []interface{}
			for _, id := range ids {
				exists, err := s.client.Exists(ctx, sessionPrefix+id).Result()
				if err == nil && exists == 0 {
					stale = append(stale, id)
				}
			}
			if len(stale) > 0 {
				s.client.SRem(ctx, setKey, stale...)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return 0, nil
}

// marshal seals the session's tokens and wraps them with the public
// fields in one envelope.
func (s *SessionStore) marshal(session *domain.OAuthSession) ([]byte, error) {
	secrets, err := s.cipher.Seal(sessionSecrets{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("seal session tokens: %w", err)
	}
	data, err := json.Marshal(sessionEnvelope{Session: session, Secrets: secrets})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

// unmarshal restores a session, opening the sealed token blob.
func (s *SessionStore) unmarshal(data []byte) (*domain.OAuthSession, error) {
	var envelope sessionEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	var secrets sessionSecrets
	if err := s.cipher.Open(envelope.Secrets, &secrets); err != nil {
		return nil, fmt.Errorf("open session tokens: %w", err)
	}
	session := envelope.Session
	session.AccessToken = secrets.AccessToken
	session.RefreshToken = secrets.RefreshToken
	return session, nil
}
