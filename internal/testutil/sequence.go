package testutil

import "sync"

// Sequence hands out increasing numbers for ordering recorded calls.
//
// Unlike a wall clock, a Sequence can be reset so that the same scenario
// numbers its calls identically on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// NewSequence creates a sequence starting at 0. The first call to Next
// returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the next number.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last number handed out.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset restarts the sequence at 0.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
