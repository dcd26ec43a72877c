// Package testutil holds helpers shared by tests and the scenario harness.
package testutil

import "sync"

// Sequence is a thread-safe monotonic counter for trace ordering.
//
// A Sequence can be reset for test reuse, so the same scenario run twice
// produces identical seq values.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// NewSequence creates a sequence starting at 0.
//
// The first call to Next() returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the next sequence number.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the current sequence number without incrementing.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset resets the sequence to 0. The next call to Next() returns 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
