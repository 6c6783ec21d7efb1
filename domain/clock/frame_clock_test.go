package clock

import (
	"math"
	"math/rand"
	"testing"

	"github.com/soocke/camrec/domain/media"
)

func ts(v int64, scale int32) media.Timestamp { return media.Timestamp{Value: v, Timescale: scale} }

func TestCorrect_WithinCadenceUnchanged(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		fps := 1 + r.Intn(120)
		scale := int32(600 + r.Intn(1_000_000))
		prev := ts(r.Int63n(1<<30), scale)
		// Any gap in [0, 1.1] frame intervals.
		gapFrames := r.Float64() * (MaxFrameDistance - 0.001)
		raw := ts(prev.Value+int64(gapFrames*float64(scale)/float64(fps)), scale)
		got, corrected := Correct(raw, prev, fps)
		if corrected || got != raw {
			t.Fatalf("fps=%d prev=%v raw=%v: expected unchanged, got %v", fps, prev, raw, got)
		}
	}
}

func TestCorrect_DiscontinuityMovesToNextFrame(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 1000; i++ {
		fps := 1 + r.Intn(120)
		scale := int32(6000 + r.Intn(1_000_000))
		prev := ts(r.Int63n(1<<30), scale)
		gapFrames := MaxFrameDistance + 0.05 + r.Float64()*100
		raw := ts(prev.Value+int64(gapFrames*float64(scale)/float64(fps)), scale)
		got, corrected := Correct(raw, prev, fps)
		if !corrected {
			t.Fatalf("expected correction for gap %.2f", gapFrames)
		}
		if got.Timescale != raw.Timescale {
			t.Fatalf("timescale changed %d -> %d", raw.Timescale, got.Timescale)
		}
		want := FramePosition(prev, fps) + 1.0
		unit := float64(fps) / float64(scale) // one timescale unit in frames
		if diff := math.Abs(FramePosition(got, fps) - want); diff > unit {
			t.Fatalf("corrected position off by %.6f frames (unit %.6f)", diff, unit)
		}
		if got.Before(prev) {
			t.Fatalf("corrected %v earlier than previous %v", got, prev)
		}
	}
}

func TestCorrect_NeverEarlierThanPrevious(t *testing.T) {
	prev := ts(1000, 600)
	got, corrected := Correct(ts(900, 600), prev, 30)
	if !corrected || got != prev {
		t.Fatalf("expected clamp to previous, got %v", got)
	}
	// Equal timestamps are fine.
	got, corrected = Correct(prev, prev, 30)
	if corrected || got != prev {
		t.Fatalf("equal timestamp should pass through, got %v", got)
	}
}

func TestClock_RecadencesAfterDeviceSwitch(t *testing.T) {
	const fps = 30
	const scale = 600
	interval := int64(scale / fps)
	c := New(fps)
	first, _ := c.Next(ts(0, scale))
	if first.Value != 0 {
		t.Fatalf("first frame changed: %v", first)
	}
	got, corrected := c.Next(ts(3*interval, scale))
	if !corrected || got.Value != interval {
		t.Fatalf("expected %d after discontinuity, got %v", interval, got)
	}
	got, corrected = c.Next(ts(4*interval, scale))
	if !corrected || got.Value != 2*interval {
		t.Fatalf("expected following frame re-cadenced to %d, got %v", 2*interval, got)
	}
	if c.Corrections() != 2 {
		t.Fatalf("expected 2 corrections, got %d", c.Corrections())
	}
}

func TestClock_PeekDoesNotAdvance(t *testing.T) {
	c := New(30)
	c.Accept(ts(0, 600), false)
	got, corrected := c.Peek(ts(60, 600))
	if !corrected || got.Value != 20 {
		t.Fatalf("peek = %v corrected=%v, want 20/600", got, corrected)
	}
	if prev, _ := c.Previous(); prev.Value != 0 {
		t.Fatalf("peek moved previous to %v", prev)
	}
	if c.Corrections() != 0 {
		t.Fatalf("peek counted a correction")
	}
	c.Accept(got, corrected)
	if prev, _ := c.Previous(); prev.Value != 20 || c.Corrections() != 1 {
		t.Fatalf("accept: previous %v corrections %d", prev, c.Corrections())
	}
}
