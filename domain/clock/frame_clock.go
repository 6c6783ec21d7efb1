// Package clock corrects video presentation timestamps that jump ahead of
// the configured cadence, which happens after the capture device is
// reconfigured mid-recording (for example on a camera switch).
package clock

import "github.com/soocke/camrec/domain/media"

// MaxFrameDistance is the largest gap, in frame intervals, accepted without
// correction.
const MaxFrameDistance = 1.1

// FramePosition returns ts expressed in frame intervals at frameRate.
func FramePosition(ts media.Timestamp, frameRate int) float64 {
	if ts.Timescale <= 0 {
		return 0
	}
	return float64(frameRate) * float64(ts.Value) / float64(ts.Timescale)
}

// Correct returns the timestamp to use for a frame with raw time raw that
// follows a frame written at previous. When more than MaxFrameDistance
// intervals separate them, the frame is moved to exactly one interval after
// previous, in raw's timescale. The result is never earlier than previous.
// The boolean reports whether raw was changed.
func Correct(raw, previous media.Timestamp, frameRate int) (media.Timestamp, bool) {
	if frameRate <= 0 || raw.Timescale <= 0 {
		return raw, false
	}
	cur := FramePosition(raw, frameRate)
	prev := FramePosition(previous, frameRate)
	gap := cur - prev
	switch {
	case gap > MaxFrameDistance:
		expected := prev + 1.0
		value := expected * float64(raw.Timescale) / float64(frameRate)
		return media.Timestamp{Value: int64(value), Timescale: raw.Timescale}, true
	case gap < 0:
		return previous.Rescale(raw.Timescale), true
	}
	return raw, false
}

// Clock tracks the previous accepted video timestamp for one recording.
// It is not safe for concurrent use; callers serialize frame delivery.
type Clock struct {
	frameRate   int
	previous    media.Timestamp
	hasPrevious bool
	corrections uint64
}

// New returns a clock for frameRate.
func New(frameRate int) *Clock { return &Clock{frameRate: frameRate} }

// SetFrameRate changes the cadence used for subsequent frames.
func (c *Clock) SetFrameRate(fps int) { c.frameRate = fps }

// FrameRate returns the current cadence.
func (c *Clock) FrameRate() int { return c.frameRate }

// Reset forgets the previous timestamp.
func (c *Clock) Reset() {
	c.previous = media.Timestamp{}
	c.hasPrevious = false
	c.corrections = 0
}

// Anchor seeds the previous timestamp without correcting anything.
func (c *Clock) Anchor(ts media.Timestamp) {
	c.previous = ts
	c.hasPrevious = true
}

// Peek corrects raw against the previous accepted timestamp without
// remembering the result. The first timestamp seen is returned unchanged.
func (c *Clock) Peek(raw media.Timestamp) (media.Timestamp, bool) {
	if !c.hasPrevious {
		return raw, false
	}
	return Correct(raw, c.previous, c.frameRate)
}

// Accept records ts as the previous accepted timestamp. corrected is the
// flag Peek returned for it.
func (c *Clock) Accept(ts media.Timestamp, corrected bool) {
	if corrected {
		c.corrections++
	}
	c.Anchor(ts)
}

// Next is Peek followed by Accept.
func (c *Clock) Next(raw media.Timestamp) (media.Timestamp, bool) {
	ts, corrected := c.Peek(raw)
	c.Accept(ts, corrected)
	return ts, corrected
}

// Previous returns the last accepted timestamp.
func (c *Clock) Previous() (media.Timestamp, bool) { return c.previous, c.hasPrevious }

// Corrections returns how many timestamps were changed since Reset.
func (c *Clock) Corrections() uint64 { return c.corrections }
