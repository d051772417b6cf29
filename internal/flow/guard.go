package flow

import (
	"context"
	"sync"
	"time"
)

// DefaultProcessingTTL is how long a processing entry lives before the sweeper drops it.
const DefaultProcessingTTL = 30 * time.Second

// Guard is the per-user processing set: while an entry for (user, kind) is
// held, a second confirm of the same kind is rejected. Stale entries expire
// after the TTL. It is safe for concurrent use.
type Guard struct {
	mu   sync.Mutex
	held map[userCommand]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewGuard creates a Guard whose entries expire after ttl.
func NewGuard(ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultProcessingTTL
	}
	return &Guard{held: make(map[userCommand]time.Time), ttl: ttl, now: time.Now}
}

// SetClock replaces the time source.
func (g *Guard) SetClock(now func() time.Time) { g.now = now }

// Acquire claims (userID, kind).
//
// Postcondition: Returns false when a live entry is already held.
func (g *Guard) Acquire(userID int64, kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := userCommand{userID, kind}
	now := g.now()
	if at, ok := g.held[key]; ok && now.Sub(at) < g.ttl {
		return false
	}
	g.held[key] = now
	return true
}

// Release drops (userID, kind). Releasing an absent entry is a no-op.
func (g *Guard) Release(userID int64, kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, userCommand{userID, kind})
}

// ReleaseUser drops every entry held by userID.
func (g *Guard) ReleaseUser(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.held {
		if k.userID == userID {
			delete(g.held, k)
		}
	}
}

// Len returns the number of held entries.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}

// Sweep drops entries older than the TTL.
//
// Postcondition: Returns the number of entries removed.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	n := 0
	for k, at := range g.held {
		if now.Sub(at) >= g.ttl {
			delete(g.held, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (g *Guard) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			g.Sweep()
		}
	}
}
