// Package safari runs the once-a-day safari minigame: a catch-only session
// against the legendaries of the trainer's region with a fixed ball budget.
package safari

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyEntered is returned when a user has used today's safari entry.
var ErrAlreadyEntered = errors.New("safari already entered today")

// Gate allows one safari entry per user between consecutive daily resets.
// It is safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	resetHour int
	loc       *time.Location
	entries   map[int64]time.Time
}

// NewGate creates a Gate that rolls over at resetHour:00 in loc.
//
// Precondition: 0 <= resetHour < 24. A nil loc means time.Local.
func NewGate(resetHour int, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.Local
	}
	return &Gate{resetHour: resetHour, loc: loc, entries: make(map[int64]time.Time)}
}

// Boundary returns the most recent reset at or before now.
func (g *Gate) Boundary(now time.Time) time.Time {
	local := now.In(g.loc)
	b := time.Date(local.Year(), local.Month(), local.Day(), g.resetHour, 0, 0, 0, g.loc)
	if local.Before(b) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// NextReset returns the first reset after now.
func (g *Gate) NextReset(now time.Time) time.Time {
	return g.Boundary(now).AddDate(0, 0, 1)
}

// Allowed reports whether an entry last made at last permits another at now.
// A zero last always allows.
func (g *Gate) Allowed(last, now time.Time) bool {
	return last.IsZero() || last.Before(g.Boundary(now))
}

// Check reports ErrAlreadyEntered if userID may not enter at now. persisted
// is the entry time stored on the trainer document, if any.
func (g *Gate) Check(userID int64, persisted *time.Time, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked(userID, persisted, now)
}

func (g *Gate) checkLocked(userID int64, persisted *time.Time, now time.Time) error {
	last := g.entries[userID]
	if persisted != nil && persisted.After(last) {
		last = *persisted
	}
	if !g.Allowed(last, now) {
		return ErrAlreadyEntered
	}
	return nil
}

// Enter records an entry for userID at now.
//
// Postcondition: Returns ErrAlreadyEntered without recording when the user
// already entered since the last reset.
func (g *Gate) Enter(userID int64, persisted *time.Time, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkLocked(userID, persisted, now); err != nil {
		return err
	}
	g.entries[userID] = now
	return nil
}

// Restore seeds an entry loaded from storage.
func (g *Gate) Restore(userID int64, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if at.After(g.entries[userID]) {
		g.entries[userID] = at
	}
}

// Sweep drops entries made before the current boundary.
//
// Postcondition: Returns the number of entries removed.
func (g *Gate) Sweep(now time.Time) int {
	b := g.Boundary(now)
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, at := range g.entries {
		if at.Before(b) {
			delete(g.entries, id)
			n++
		}
	}
	return n
}
