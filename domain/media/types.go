package media

import (
	"fmt"
	"image"
	"math"
	"time"
)

// Timestamp is a rational presentation time: Value/Timescale seconds.
type Timestamp struct {
	Value     int64
	Timescale int32
}

// NanosecondTimescale is the timescale used by the host clock.
const NanosecondTimescale int32 = 1_000_000_000

// Zero reports whether t is the zero timestamp.
func (t Timestamp) Zero() bool { return t.Value == 0 }

// Valid reports whether t has a usable timescale.
func (t Timestamp) Valid() bool { return t.Timescale > 0 }

// Seconds returns t as floating point seconds. Invalid timestamps are 0.
func (t Timestamp) Seconds() float64 {
	if t.Timescale <= 0 {
		return 0
	}
	return float64(t.Value) / float64(t.Timescale)
}

// Duration converts t to a time.Duration.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(math.Round(t.Seconds() * float64(time.Second)))
}

// Sub returns t - o as a duration.
func (t Timestamp) Sub(o Timestamp) time.Duration {
	return time.Duration(math.Round((t.Seconds() - o.Seconds()) * float64(time.Second)))
}

// Before reports whether t is earlier than o.
func (t Timestamp) Before(o Timestamp) bool { return t.Seconds() < o.Seconds() }

// Rescale converts t to the given timescale, truncating toward zero.
func (t Timestamp) Rescale(timescale int32) Timestamp {
	if t.Timescale == timescale || t.Timescale <= 0 {
		return Timestamp{Value: t.Value, Timescale: timescale}
	}
	v := float64(t.Value) * float64(timescale) / float64(t.Timescale)
	return Timestamp{Value: int64(v), Timescale: timescale}
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d/%d", t.Value, t.Timescale)
}

// FromDuration builds a nanosecond timestamp.
func FromDuration(d time.Duration) Timestamp {
	return Timestamp{Value: int64(d), Timescale: NanosecondTimescale}
}

// TrackKind identifies the media carried by a sample or track input.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// AudioFormat describes interleaved signed 16-bit little endian PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// FrameSample is one unit of captured media. Video samples carry Image,
// audio samples carry PCM. Samples are only valid for the duration of the
// callback they are delivered to.
type FrameSample struct {
	Kind  TrackKind
	PTS   Timestamp
	Image *image.RGBA
	PCM   []byte
	Audio AudioFormat
}

// Ready mirrors the capture subsystem's "data is ready" flag.
func (s FrameSample) Ready() bool {
	switch s.Kind {
	case TrackVideo:
		return s.Image != nil && len(s.Image.Pix) > 0
	case TrackAudio:
		return len(s.PCM) > 0
	}
	return false
}

// Position identifies a capture device position.
type Position int

const (
	PositionBack Position = iota
	PositionFront
)

// Opposite returns the other position.
func (p Position) Opposite() Position {
	if p == PositionFront {
		return PositionBack
	}
	return PositionFront
}

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unspecified"
	}
}

// ParsePosition parses "back" or "front".
func ParsePosition(s string) (Position, error) {
	switch s {
	case "back", "":
		return PositionBack, nil
	case "front":
		return PositionFront, nil
	}
	return PositionBack, fmt.Errorf("unknown camera position %q", s)
}

// Point is a normalized point of interest, both axes in [0,1].
type Point struct {
	X, Y float64
}

// Clamp limits both coordinates to [0,1].
func (p Point) Clamp() Point {
	return Point{X: clamp01(p.X), Y: clamp01(p.Y)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
