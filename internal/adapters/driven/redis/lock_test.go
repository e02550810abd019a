package redis

import (
	"context"
	"testing"
	"time"
)

func TestLock_AcquireAndRelease(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lock := NewLock(client)
	if lock.OwnerID() == "" {
		t.Fatal("expected non-empty owner ID")
	}

	acquired, err := lock.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	if err := lock.Release(ctx, "janitor"); err != nil {
		t.Fatalf("release: %v", err)
	}

	acquired, err = lock.Acquire(ctx, "janitor", 10*time.Second)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire after release")
	}
}

func TestLock_HeldByAnotherInstance(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Fatal("expected distinct owner IDs")
	}

	if acquired, _ := lock1.Acquire(ctx, "janitor", 10*time.Second); !acquired {
		t.Fatal("expected first instance to acquire")
	}
	if acquired, _ := lock2.Acquire(ctx, "janitor", 10*time.Second); acquired {
		t.Error("expected second instance to be refused")
	}

	// A foreign release is a no-op.
	if err := lock2.Release(ctx, "janitor"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if acquired, _ := lock2.Acquire(ctx, "janitor", 10*time.Second); acquired {
		t.Error("expected lock still held by the first instance")
	}
}

func TestLock_ReleaseUnheldIsSafe(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	if err := lock.Release(context.Background(), "never-acquired"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_Extend(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lock := NewLock(client)
	if acquired, _ := lock.Acquire(ctx, "janitor", time.Second); !acquired {
		t.Fatal("expected to acquire lock")
	}
	if err := lock.Extend(ctx, "janitor", 10*time.Second); err != nil {
		t.Fatalf("extend: %v", err)
	}

	other := NewLock(client)
	if err := other.Extend(ctx, "janitor", 10*time.Second); err == nil {
		t.Error("expected extend by non-owner to fail")
	}
	if err := other.Extend(ctx, "unheld", 10*time.Second); err == nil {
		t.Error("expected extend of unheld lock to fail")
	}
}

func TestLock_ExpiresWithTTL(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if acquired, _ := lock1.Acquire(ctx, "janitor", time.Second); !acquired {
		t.Fatal("expected to acquire lock")
	}
	mr.FastForward(2 * time.Second)

	if acquired, _ := lock2.Acquire(ctx, "janitor", time.Second); !acquired {
		t.Error("expected lock to be free after TTL")
	}
}

func TestLock_Ping(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
