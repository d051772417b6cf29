package flow

import (
	"sync"
	"time"
)

// DefaultCooldown is the gap used for commands without their own entry.
const DefaultCooldown = 2 * time.Second

// DefaultGaps are the per-command minimum gaps.
var DefaultGaps = map[string]time.Duration{
	"hunt":    3 * time.Second,
	"fish":    3 * time.Second,
	"explore": 3 * time.Second,
	"safari":  4 * time.Second,
	"duel":    4 * time.Second,
	"trade":   4 * time.Second,
	"give":    4 * time.Second,
	"gym":     4 * time.Second,
}

type userCommand struct {
	userID  int64
	command string
}

// Cooldowns enforces a minimum gap between uses of a command by one user.
// It is safe for concurrent use.
type Cooldowns struct {
	mu   sync.Mutex
	last map[userCommand]time.Time
	gaps map[string]time.Duration
	def  time.Duration
	now  func() time.Time
}

// NewCooldowns creates a Cooldowns using def for commands missing from gaps.
func NewCooldowns(def time.Duration, gaps map[string]time.Duration) *Cooldowns {
	cp := make(map[string]time.Duration, len(gaps))
	for k, v := range gaps {
		cp[k] = v
	}
	return &Cooldowns{last: make(map[userCommand]time.Time), gaps: cp, def: def, now: time.Now}
}

// SetClock replaces the time source.
func (c *Cooldowns) SetClock(now func() time.Time) { c.now = now }

// Gap returns the cooldown for command.
func (c *Cooldowns) Gap(command string) time.Duration {
	if g, ok := c.gaps[command]; ok {
		return g
	}
	return c.def
}

// Allow records a use of command by userID if the gap has passed.
//
// Postcondition: Returns (true, 0) and records the use, or (false, wait)
// with the remaining wait and nothing recorded.
func (c *Cooldowns) Allow(userID int64, command string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	key := userCommand{userID, command}
	if last, ok := c.last[key]; ok {
		if wait := c.Gap(command) - now.Sub(last); wait > 0 {
			return false, wait
		}
	}
	c.last[key] = now
	return true, 0
}

// Sweep forgets uses whose gap has passed.
//
// Postcondition: Returns the number of entries removed.
func (c *Cooldowns) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, at := range c.last {
		if now.Sub(at) >= c.Gap(k.command) {
			delete(c.last, k)
			n++
		}
	}
	return n
}
