package timing

import (
	"sync"
	"time"
)

// A Clock provides the current instant. Implementations must never go
// backward; a PeriodicSignal driven by a non-monotonic clock has undefined
// behavior.
type Clock interface {
	Now() time.Time
}

// RealClock reads the process clock. The values it returns carry Go's
// monotonic reading, so differences between them are immune to wall-clock
// adjustments.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a clock that only moves when told to. It is safe for
// concurrent use.
type ManualClock struct {
	lock sync.Mutex
	now  time.Time
}

// NewManualClock creates a ManualClock that starts at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current instant of the clock.
func (c *ManualClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

// Advance moves the clock forward. Negative durations are ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}

	c.lock.Lock()
	c.now = c.now.Add(d)
	c.lock.Unlock()
}

// Set moves the clock to t. Moving backward is ignored.
func (c *ManualClock) Set(t time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if t.Before(c.now) {
		return
	}

	c.now = t
}
