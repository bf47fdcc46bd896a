package ical

import "time"

// Clock supplies the "now" used for DTSTAMP and LAST-MODIFIED on every
// mutation (§4.7, §5). Production code uses RealClock; tests use FixedClock
// so assertions don't race the wall clock.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock, backed by time.Now.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock is a deterministic Clock for tests. Each call to Now returns
// the configured instant unless Advance has moved it forward.
type FixedClock struct {
	At time.Time
}

func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{At: at}
}

func (c *FixedClock) Now() time.Time { return c.At }

// Advance moves the fixed clock forward, useful for asserting that
// consecutive edits each get a distinct LAST-MODIFIED.
func (c *FixedClock) Advance(d time.Duration) {
	c.At = c.At.Add(d)
}
