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
var _ driven.OAuthStateStore = (*StateStore)(nil)

const statePrefix = "oauth:state:"

// stateEnvelope is the persisted shape of an in-flight authorization
// attempt. The PKCE verifier never serializes on the domain type, so it
// travels sealed.
type stateEnvelope struct {
	State    *domain.OAuthState `json:"state"`
	Verifier []byte             `json:"verifier,omitempty"`
}

// StateStore implements driven.OAuthStateStore using Redis. GETDEL
// gives the single-use guarantee: of two concurrent callbacks presenting
// the same state, exactly one receives it.
type StateStore struct {
	client *redis.Client
	cipher *TokenCipher
}

// NewStateStore creates a Redis-backed state store.
func NewStateStore(client *redis.Client, cipher *TokenCipher) *StateStore {
	return &StateStore{client: client, cipher: cipher}
}

// Save stores a state with TTL based on its expiry.
func (s *StateStore) Save(ctx context.Context, state *domain.OAuthState) error {
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	envelope := stateEnvelope{State: state}
	if state.CodeVerifier != "" {
		sealed, err := s.cipher.Seal(state.CodeVerifier)
		if err != nil {
			return fmt.Errorf("seal code verifier: %w", err)
		}
		envelope.Verifier = sealed
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, statePrefix+state.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// GetAndDelete atomically retrieves and deletes the state.
// Returns nil, nil if the state doesn't exist or has expired.
func (s *StateStore) GetAndDelete(ctx context.Context, state string) (*domain.OAuthState, error) {
	data, err := s.client.GetDel(ctx, statePrefix+state).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	var envelope stateEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	stored := envelope.State
	if len(envelope.Verifier) > 0 {
		if err := s.cipher.Open(envelope.Verifier, &stored.CodeVerifier); err != nil {
			return nil, fmt.Errorf("open code verifier: %w", err)
		}
	}

	// TTL removal is eventual; a state read in the gap is still dead.
	if stored.IsExpired() {
		return nil, nil
	}
	return stored, nil
}

// Cleanup is a no-op: Redis TTL removes expired states natively.
func (s *StateStore) Cleanup(ctx context.Context) (int, error) {
	return 0, nil
}
