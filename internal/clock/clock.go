// Package clock supplies wall time to components that stamp records.
//
// Ordering in the store never depends on these timestamps (row ids are the
// logical clock); they are kept for display and for choosing "today".
package clock

import (
	"sync"
	"time"

	"github.com/roach88/mnemo/internal/model"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the production clock. Times are always UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Today returns the current UTC calendar day of c.
func Today(c Clock) model.Day {
	return model.DayOf(c.Now())
}

// Fixed is a settable clock for tests and deterministic replays.
//
// Thread-safety: Fixed is safe for concurrent use.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed creates a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

// Now returns the frozen time.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
