package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

// setupTestRedis starts a miniredis instance and a client against it
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func testCipher(t *testing.T) *TokenCipher {
	t.Helper()
	cipher, err := NewTokenCipher(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return cipher
}

func setupTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis, func()) {
	t.Helper()
	client, mr, cleanup := setupTestRedis(t)
	store := NewSessionStore(client, testCipher(t), 24*time.Hour)
	return store, mr, cleanup
}

func testOAuthSession(id, userID string) *domain.OAuthSession {
	now := time.Now()
	return &domain.OAuthSession{
		ID:           id,
		UserID:       userID,
		Provider:     domain.ProviderTypeGitHub,
		AccessToken:  "gho_access",
		RefreshToken: "ghr_refresh",
		CreatedAt:    now,
		LastAccessAt: now,
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	store, _, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	session := testOAuthSession("s1", "user-1")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "user-1" || got.Provider != domain.ProviderTypeGitHub {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.AccessToken != "gho_access" || got.RefreshToken != "ghr_refresh" {
		t.Error("expected tokens restored from the sealed blob")
	}
}

func TestSessionStore_TokensEncryptedAtRest(t *testing.T) {
	store, mr, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Save(ctx, testOAuthSession("s1", "user-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := mr.Get(sessionPrefix + "s1")
	if err != nil {
		t.Fatalf("read raw key: %v", err)
	}
	if bytes.Contains([]byte(raw), []byte("gho_access")) {
		t.Error("plaintext access token leaked into Redis")
	}
	if bytes.Contains([]byte(raw), []byte("ghr_refresh")) {
		t.Error("plaintext refresh token leaked into Redis")
	}
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, _, cleanup := setupTestSessionStore(t)
	defer cleanup()

	if _, err := store.Get(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStore_ExpiredSessionNotSaved(t *testing.T) {
	store, _, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	session := testOAuthSession("s1", "user-1")
	expired := time.Now().Add(-time.Minute)
	session.TokenExpiresAt = &expired

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err != domain.ErrNotFound {
		t.Error("expected already-expired session to be dropped")
	}
}

func TestSessionStore_TTLFollowsTokenExpiry(t *testing.T) {
	store, mr, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	session := testOAuthSession("s1", "user-1")
	expiry := time.Now().Add(time.Hour)
	session.TokenExpiresAt = &expiry
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.Get(ctx, "s1"); err != domain.ErrNotFound {
		t.Error("expected session expired via TTL")
	}
}

func TestSessionStore_Touch(t *testing.T) {
	store, _, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	session := testOAuthSession("s1", "user-1")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	bumped := time.Now().Add(time.Minute)
	if err := store.Touch(ctx, "s1", bumped); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, _ := store.Get(ctx, "s1")
	if !got.LastAccessAt.After(session.LastAccessAt) {
		t.Error("expected last access time bumped")
	}
	if got.AccessToken != "gho_access" {
		t.Error("expected tokens to survive a touch")
	}

	if err := store.Touch(ctx, "missing", time.Now()); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound for missing session, got %v", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	store, _, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Save(ctx, testOAuthSession("s1", "user-1"))

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err != domain.ErrNotFound {
		t.Error("expected session gone")
	}

	// Deleting twice is fine.
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}

func TestSessionStore_DeleteByUser(t *testing.T) {
	store, _, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Save(ctx, testOAuthSession("s1", "user-1"))
	store.Save(ctx, testOAuthSession("s2", "user-1"))
	store.Save(ctx, testOAuthSession("other", "user-2"))

	removed, err := store.DeleteByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("delete by user: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Error("expected other user's session untouched")
	}
}

func TestSessionStore_ListByUser(t *testing.T) {
	store, mr, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Save(ctx, testOAuthSession("s1", "user-1"))
	store.Save(ctx, testOAuthSession("s2", "user-1"))

	sessions, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	// Expire one underneath the set and list again: the stale
	// reference is pruned.
	mr.Del(sessionPrefix + "s1")
	sessions, err = store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list after expiry: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s2" {
		t.Errorf("expected only s2, got %d sessions", len(sessions))
	}
}

func TestSessionStore_CleanupPrunesStaleReferences(t *testing.T) {
	store, mr, cleanup := setupTestSessionStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Save(ctx, testOAuthSession("s1", "user-1"))
	store.Save(ctx, testOAuthSession("s2", "user-1"))
	mr.Del(sessionPrefix + "s1")

	if _, err := store.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	members, _ := store.client.SMembers(ctx, sessionUserPrefix+"user-1").Result()
	if len(members) != 1 || members[0] != "s2" {
		t.Errorf("expected stale member pruned, got %v", members)
	}
}
