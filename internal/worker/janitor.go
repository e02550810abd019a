package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/riatzukiza/mcp-sub003/internal/core/ports/driven"
)

// sweepLockName coordinates sweeps across replicas: only the lock
// holder runs a given cycle.
const sweepLockName = "janitor-sweep"

// SessionSweeper evicts expired OAuth states and sessions.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context) (states, sessions int)
}

// BlacklistSweeper prunes token blacklist entries whose tokens have
// expired on their own.
type BlacklistSweeper interface {
	CleanupBlacklist(ctx context.Context) (int, error)
}

// LimiterSweeper evicts stale rate-limit windows.
type LimiterSweeper interface {
	CleanupRateLimiters() int
}

// Janitor periodically sweeps expired authorization state: OAuth
// states and sessions, blacklisted token IDs, and rate-limit windows.
// Redis-backed stores expire entries natively, so their sweeps are
// cheap no-ops; the in-memory stores rely on the janitor entirely.
type Janitor struct {
	sessions  SessionSweeper
	blacklist BlacklistSweeper
	limiters  LimiterSweeper
	lock      driven.DistributedLock // optional; nil means no coordination
	logger    *slog.Logger
	interval  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	Sessions  SessionSweeper
	Blacklist BlacklistSweeper
	Limiters  LimiterSweeper
	Lock      driven.DistributedLock // optional
	Logger    *slog.Logger
	Interval  time.Duration // Sweep interval; defaults to 5 minutes
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Janitor{
		sessions:  cfg.Sessions,
		blacklist: cfg.Blacklist,
		limiters:  cfg.Limiters,
		lock:      cfg.Lock,
		logger:    logger,
		interval:  interval,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("janitor starting", "interval", j.interval)

	go j.loop(ctx)

	return nil
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor context cancelled")
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// sweep runs one cleanup cycle. With a distributed lock configured,
// only one replica sweeps per cycle; the rest skip quietly.
func (j *Janitor) sweep(ctx context.Context) {
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, sweepLockName, j.interval)
		if err != nil {
			j.logger.Error("failed to acquire sweep lock", "error", err)
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := j.lock.Release(ctx, sweepLockName); err != nil {
				j.logger.Error("failed to release sweep lock", "error", err)
			}
		}()
	}

	start := time.Now()

	var states, sessions int
	if j.sessions != nil {
		states, sessions = j.sessions.CleanupExpired(ctx)
	}

	var blacklisted int
	if j.blacklist != nil {
		n, err := j.blacklist.CleanupBlacklist(ctx)
		if err != nil {
			j.logger.Error("blacklist sweep failed", "error", err)
		}
		blacklisted = n
	}

	var limiters int
	if j.limiters != nil {
		limiters = j.limiters.CleanupRateLimiters()
	}

	j.logger.Info("sweep completed",
		"states", states,
		"sessions", sessions,
		"blacklist", blacklisted,
		"rate_limiters", limiters,
		"duration", time.Since(start),
	)
}
