package dice

import "sync"

// Scripted replays queued values in order and falls back to fixed values once
// a queue is drained. It is used to pin outcomes in tests and replays.
type Scripted struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
	// IntFallback is returned (clamped to n-1) when the int queue is empty.
	IntFallback int
	// FloatFallback is returned when the float queue is empty.
	FloatFallback float64
}

// NewScripted returns an empty Scripted source that rolls 0 and 0.0.
func NewScripted() *Scripted {
	return &Scripted{}
}

// PushInts queues values for Intn.
func (s *Scripted) PushInts(v ...int) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ints = append(s.ints, v...)
	return s
}

// PushFloats queues values for Float64.
func (s *Scripted) PushFloats(v ...float64) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floats = append(s.floats, v...)
	return s
}

// Intn pops the next queued int, clamped into [0, n).
//
// Precondition: n > 0.
func (s *Scripted) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.IntFallback
	if len(s.ints) > 0 {
		v, s.ints = s.ints[0], s.ints[1:]
	}
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// Float64 pops the next queued float.
func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) > 0 {
		v := s.floats[0]
		s.floats = s.floats[1:]
		return v
	}
	return s.FloatFallback
}
