package flow

import "sync"

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Locks serializes work per user. Entries are dropped once no goroutine
// holds or waits on them.
type Locks struct {
	mu    sync.Mutex
	users map[int64]*userLock
}

// NewLocks creates an empty Locks.
func NewLocks() *Locks {
	return &Locks{users: make(map[int64]*userLock)}
}

// Lock blocks until userID is free and returns the unlock func.
func (l *Locks) Lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.users[userID]
	if !ok {
		ul = &userLock{}
		l.users[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}

// LockPair locks two users in id order.
func (l *Locks) LockPair(a, b int64) func() {
	if a == b {
		return l.Lock(a)
	}
	if b < a {
		a, b = b, a
	}
	ua := l.Lock(a)
	ub := l.Lock(b)
	return func() {
		ub()
		ua()
	}
}

// Len returns the number of users currently tracked.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
