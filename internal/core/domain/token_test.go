package domain

import (
	"testing"
	"time"
)

func TestTokenClaimsIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{
			name:      "expired token",
			expiresAt: time.Now().Add(-1 * time.Minute),
			expected:  true,
		},
		{
			name:      "valid token",
			expiresAt: time.Now().Add(15 * time.Minute),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &TokenClaims{ExpiresAt: tt.expiresAt}
			if claims.IsExpired() != tt.expected {
				t.Errorf("expected IsExpired() = %v", tt.expected)
			}
		})
	}
}

func TestTokenClaimsExpiresWithin(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		threshold time.Duration
		expected  bool
	}{
		{
			name:      "expires inside threshold",
			expiresAt: time.Now().Add(200 * time.Second),
			threshold: 300 * time.Second,
			expected:  true,
		},
		{
			name:      "expires outside threshold",
			expiresAt: time.Now().Add(400 * time.Second),
			threshold: 300 * time.Second,
			expected:  false,
		},
		{
			name:      "already expired",
			expiresAt: time.Now().Add(-10 * time.Second),
			threshold: 300 * time.Second,
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &TokenClaims{ExpiresAt: tt.expiresAt}
			if claims.ExpiresWithin(tt.threshold) != tt.expected {
				t.Errorf("expected ExpiresWithin(%v) = %v", tt.threshold, tt.expected)
			}
		})
	}
}
