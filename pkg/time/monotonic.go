package time

import (
	"time"

	"github.com/juju/clock"
)

// Clock measures time since it was created
// on the wall clock Sub uses the monotonic reading, so jumps in system time do not move it
// key expiry in the in-memory store is tracked on this clock
type Clock struct {
	source    clock.Clock
	startTime time.Time
}

func NewClock() *Clock {
	return NewClockFrom(clock.WallClock)
}

// clock driven by source, tests pass a testclock to control expiry
func NewClockFrom(source clock.Clock) *Clock {
	return &Clock{
		source:    source,
		startTime: source.Now(),
	}
}

// duration since start, always moves forward
func (c *Clock) Elapsed() time.Duration {
	return c.source.Now().Sub(c.startTime)
}

// the instant, relative to start, at which something with this ttl expires
func (c *Clock) ExpiresAt(ttl time.Duration) time.Duration {
	return c.Elapsed() + ttl
}
