package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// Key identifies one live flow.
type Key struct {
	UserID int64
	Kind   string
}

// Definition describes a flow's state machine.
type Definition struct {
	Initial string
	Events  fsm.Events
}

// Flow is one user's live interactive flow: a state machine plus typed data.
// A flow is owned by its user; callers serialize access with Locks.
type Flow[T any] struct {
	Key     Key
	Data    T
	Started time.Time

	machine *fsm.FSM
	done    bool
}

// State returns the current state.
func (f *Flow[T]) State() string { return f.machine.Current() }

// Is reports whether the flow is in state.
func (f *Flow[T]) Is(state string) bool { return f.machine.Is(state) }

// Can reports whether event is valid from the current state.
func (f *Flow[T]) Can(event string) bool { return f.machine.Can(event) }

// Fire runs event.
//
// Postcondition: An event that is not valid in the current state returns
// ErrStateConflict and leaves the state unchanged.
func (f *Flow[T]) Fire(ctx context.Context, event string) error {
	err := f.machine.Event(ctx, event)
	if err == nil {
		return nil
	}
	var (
		invalid fsm.InvalidEventError
		unknown fsm.UnknownEventError
		none    fsm.NoTransitionError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &unknown):
		return fmt.Errorf("%w: %s in state %s", ErrStateConflict, event, f.State())
	case errors.As(err, &none):
		return nil
	}
	return err
}

// Done reports whether the flow's destructive step has run.
func (f *Flow[T]) Done() bool { return f.done }

// MarkDone flags the destructive step as run.
//
// Postcondition: The second call returns ErrStateConflict.
func (f *Flow[T]) MarkDone() error {
	if f.done {
		return Conflict("already done")
	}
	f.done = true
	return nil
}

// Registry holds the live flows of one kind, one per user. It is safe for
// concurrent use.
type Registry[T any] struct {
	mu    sync.Mutex
	kind  string
	def   Definition
	flows map[int64]*Flow[T]
	now   func() time.Time
}

// NewRegistry creates a Registry for flows of kind.
func NewRegistry[T any](kind string, def Definition) *Registry[T] {
	return &Registry[T]{kind: kind, def: def, flows: make(map[int64]*Flow[T]), now: time.Now}
}

// Kind returns the flow kind.
func (r *Registry[T]) Kind() string { return r.kind }

// Start begins a flow for userID in the initial state, replacing any flow
// the user already had.
func (r *Registry[T]) Start(userID int64, data T) *Flow[T] {
	f := &Flow[T]{
		Key:     Key{UserID: userID, Kind: r.kind},
		Data:    data,
		Started: r.now(),
		machine: fsm.NewFSM(r.def.Initial, r.def.Events, fsm.Callbacks{}),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[userID] = f
	return f
}

// Get returns userID's flow.
//
// Postcondition: Returns ErrStateConflict when there is none, which is what
// a stale button press sees.
func (r *Registry[T]) Get(userID int64) (*Flow[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[userID]
	if !ok {
		return nil, Conflict(fmt.Sprintf("no %s in progress", r.kind))
	}
	return f, nil
}

// End removes userID's flow.
func (r *Registry[T]) End(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, userID)
}

// Len returns the number of live flows.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Sweep removes flows started more than maxAge ago.
func (r *Registry[T]) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxAge)
	n := 0
	for id, f := range r.flows {
		if f.Started.Before(cutoff) {
			delete(r.flows, id)
			n++
		}
	}
	return n
}
