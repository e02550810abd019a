package services

import (
	"testing"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/domain"
)

func TestRateLimiter_MinuteCapBlocksThird(t *testing.T) {
	limiter := NewRateLimiter(domain.RateLimitConfig{
		RequestsPerMinute: 2,
		RequestsPerHour:   100,
	})

	// Three calls within the same second of a fresh window: the first
	// is never minute-limited, the second fits the cap, the third hits it.
	got := []bool{limiter.Allow("k"), limiter.Allow("k"), limiter.Allow("k")}
	want := []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected %v, got %v", i+1, want[i], got[i])
		}
	}
}

func TestRateLimiter_FirstCallNeverMinuteLimited(t *testing.T) {
	// Even a zero minute cap admits the first call of a fresh window,
	// because the minute check requires Count > 0.
	limiter := NewRateLimiter(domain.RateLimitConfig{
		RequestsPerMinute: 0,
		RequestsPerHour:   100,
	})

	if !limiter.Allow("k") {
		t.Error("first call of a fresh window must be allowed")
	}
	if limiter.Allow("k") {
		t.Error("second call must hit the zero minute cap")
	}
}

func TestRateLimiter_HourCap(t *testing.T) {
	limiter := NewRateLimiter(domain.RateLimitConfig{
		RequestsPerMinute: 1000,
		RequestsPerHour:   3,
	})

	for i := 0; i < 3; i++ {
		if !limiter.Allow("k") {
			t.Fatalf("call %d should fit the hour cap", i+1)
		}
	}
	if limiter.Allow("k") {
		t.Error("fourth call must hit the hour cap")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	limiter := NewRateLimiter(domain.RateLimitConfig{
		RequestsPerMinute: 1,
		RequestsPerHour:   1,
	})

	if !limiter.Allow("k") {
		t.Fatal("first call should be allowed")
	}
	if limiter.Allow("k") {
		t.Fatal("second call should be blocked")
	}

	// Force the window past its reset time.
	limiter.mu.Lock()
	entry := limiter.entries["k"]
	entry.ResetTime = time.Now().Add(-time.Second)
	limiter.mu.Unlock()

	if !limiter.Allow("k") {
		t.Error("call after the window reset should open a fresh window")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(domain.RateLimitConfig{
		RequestsPerMinute: 1000,
		RequestsPerHour:   1,
	})

	if !limiter.Allow("a") {
		t.Fatal("key a should be allowed")
	}
	if !limiter.Allow("b") {
		t.Error("key b has its own budget")
	}
	if limiter.Allow("a") {
		t.Error("key a is spent")
	}
}

func TestRateLimiter_CleanupEvictsEndedWindows(t *testing.T) {
	limiter := NewRateLimiter(domain.RateLimitConfig{
		RequestsPerMinute: 10,
		RequestsPerHour:   10,
	})

	limiter.Allow("stale")
	limiter.Allow("live")

	limiter.mu.Lock()
	limiter.entries["stale"].ResetTime = time.Now().Add(-time.Minute)
	limiter.mu.Unlock()

	if removed := limiter.Cleanup(); removed != 1 {
		t.Errorf("expected 1 evicted, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", limiter.Len())
	}
}
