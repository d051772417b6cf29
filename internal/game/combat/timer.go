package combat

import (
	"sync"
	"time"
)

// RoundTimer runs a callback once after a delay unless stopped or re-armed.
// It is safe for concurrent use.
type RoundTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewRoundTimer arms a timer that calls onFire after d on its own goroutine.
//
// Precondition: d > 0; onFire must not be nil.
func NewRoundTimer(d time.Duration, onFire func()) *RoundTimer {
	rt := &RoundTimer{}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.armLocked(d, onFire)
	return rt
}

// armLocked must be called with mu held. The callback only runs if this
// timer is still the current one when it fires.
func (rt *RoundTimer) armLocked(d time.Duration, onFire func()) {
	var self *time.Timer
	self = time.AfterFunc(d, func() {
		rt.mu.Lock()
		live := !rt.stopped && rt.timer == self
		rt.mu.Unlock()
		if live {
			onFire()
		}
	})
	rt.timer = self
}

// Reset cancels the pending callback and arms a new one.
//
// Postcondition: only the new onFire can run, after d from now.
func (rt *RoundTimer) Reset(d time.Duration, onFire func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.stopped = false
	if rt.timer != nil {
		rt.timer.Stop()
	}
	rt.armLocked(d, onFire)
}

// Stop prevents any pending callback from running. Safe to call repeatedly.
func (rt *RoundTimer) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.stopped = true
	if rt.timer != nil {
		rt.timer.Stop()
	}
}
