// ABOUTME: Thread-safe, size-bounded record of consumed one-time credentials.
// ABOUTME: Rejects a second use of an authorization code until the code itself expires.

package auth

import (
	"errors"
	"sync"
	"time"
)

// DefaultReplayGuardSize bounds the number of remembered codes.
const DefaultReplayGuardSize = 10000

// Replay guard errors
var (
	ErrAlreadyConsumed = errors.New("already consumed")
	ErrReplayGuardFull = errors.New("replay guard is full")
)

// ReplayGuard remembers consumed one-time values until they expire. An
// unexpired entry is never forgotten: when the guard is full and nothing
// has expired, new values are refused.
type ReplayGuard struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewReplayGuard creates a guard holding at most maxSize entries. A
// background goroutine drops expired entries once a minute.
func NewReplayGuard(maxSize int) *ReplayGuard {
	if maxSize <= 0 {
		maxSize = DefaultReplayGuardSize
	}
	g := &ReplayGuard{
		seen:    make(map[string]time.Time),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go g.cleanup()
	return g
}

// Consume marks key as used until expiresAt. It returns ErrAlreadyConsumed
// if key was consumed and has not expired, and ErrReplayGuardFull if there
// is no room even after dropping expired entries.
func (g *ReplayGuard) Consume(key string, expiresAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if exp, ok := g.seen[key]; ok {
		if now.Before(exp) {
			return ErrAlreadyConsumed
		}
		delete(g.seen, key)
	}

	if len(g.seen) >= g.maxSize {
		g.removeExpiredLocked(now)
		if len(g.seen) >= g.maxSize {
			return ErrReplayGuardFull
		}
	}
	g.seen[key] = expiresAt
	return nil
}

// Used reports whether key is currently marked as consumed.
func (g *ReplayGuard) Used(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	exp, ok := g.seen[key]
	return ok && time.Now().Before(exp)
}

// Len returns the number of remembered entries, expired or not.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *ReplayGuard) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.removeExpired()
		case <-g.done:
			return
		}
	}
}

func (g *ReplayGuard) removeExpired() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeExpiredLocked(time.Now())
}

// removeExpiredLocked must be called with mu held.
func (g *ReplayGuard) removeExpiredLocked(now time.Time) {
	for key, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (g *ReplayGuard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
