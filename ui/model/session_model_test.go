package model

import (
	"testing"
	"time"
)

func TestSessionModel_BasicLifecycle(t *testing.T) {
	m := NewSessionModel()

	m.OnElapsed(true, 0)
	m.OnElapsed(true, 5*time.Second)
	session, total := m.Values()
	if session != 5*time.Second || total != 5*time.Second {
		t.Fatalf("expected 5s session & total; got session=%v total=%v", session, total)
	}

	// Stop: the session value persists.
	m.OnElapsed(false, 0)
	session, total = m.Values()
	if session != 5*time.Second || total != 5*time.Second {
		t.Fatalf("after stop expected persisted 5s; got session=%v total=%v", session, total)
	}

	// Idle ticks change nothing.
	m.OnElapsed(false, 7*time.Second)
	session2, total2 := m.Values()
	if session2 != session || total2 != total {
		t.Fatalf("idle tick should not change durations: before session=%v total=%v after session=%v total=%v", session, total, session2, total2)
	}

	// Second recording lasting 3s.
	m.OnElapsed(true, 0)
	m.OnElapsed(true, 3*time.Second)
	s3, t3 := m.Values()
	if s3 != 3*time.Second || t3 != 8*time.Second {
		t.Fatalf("expected session 3s total 8s; got session=%v total=%v", s3, t3)
	}

	m.OnElapsed(false, 0)
	sFinal, tFinal := m.Values()
	if sFinal != 3*time.Second || tFinal != 8*time.Second {
		t.Fatalf("final expected session 3s total 8s got session=%v total=%v", sFinal, tFinal)
	}
	if m.Recordings() != 2 {
		t.Fatalf("recordings = %d", m.Recordings())
	}
}

func TestSessionModel_ElapsedNeverDecreases(t *testing.T) {
	m := NewSessionModel()
	m.OnElapsed(true, 2*time.Second)
	m.OnElapsed(true, time.Second)
	if s, _ := m.Values(); s != 2*time.Second {
		t.Fatalf("session went backwards: %v", s)
	}
}

func TestStatusModel(t *testing.T) {
	var m StatusModel
	if m.Recording() || m.Message() != "" {
		t.Fatalf("zero value not idle")
	}
	m.SetState("writing", true)
	m.SetMessage("recording /tmp/a.mov")
	m.SetPosition("front")
	m.SetZoom(2)
	st := m.Snapshot()
	if !st.Recording || st.State != "writing" || st.Position != "front" || st.Zoom != 2 || st.Message != "recording /tmp/a.mov" {
		t.Fatalf("unexpected snapshot %+v", st)
	}
	if st.Version == 0 {
		t.Fatalf("version not bumped")
	}
	prev := st.Version
	m.SetState("writing", true)
	if m.Snapshot().Version != prev {
		t.Fatalf("unchanged state should not bump version")
	}
	var nilModel *StatusModel
	nilModel.SetState("idle", false)
	if nilModel.Recording() {
		t.Fatalf("nil model recording")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00.0"},
		{-time.Second, "00:00.0"},
		{1530 * time.Millisecond, "00:01.5"},
		{75 * time.Second, "01:15.0"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
