package media

import "time"

// HostClock stamps samples from all capture devices against one monotonic
// epoch so audio and video timestamps are comparable.
type HostClock struct {
	epoch time.Time
}

// NewHostClock returns a clock whose zero is now.
func NewHostClock() *HostClock { return &HostClock{epoch: time.Now()} }

// Now returns the current host time as a nanosecond timestamp.
func (c *HostClock) Now() Timestamp {
	return FromDuration(time.Since(c.epoch))
}

// At converts a wall time to a host timestamp.
func (c *HostClock) At(t time.Time) Timestamp {
	return FromDuration(t.Sub(c.epoch))
}
