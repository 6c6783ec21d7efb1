package presenter

import "time"

// EventDrainer runs observer callbacks queued for the UI thread.
type EventDrainer interface{ Drain() int }

// Loop aggregates feature presenters and drives periodic updates.
//
// It drains queued events, calls Tick on the sub-presenters and invokes a
// scheduler callback. The zero value is usable (methods are nil-safe).
type Loop struct {
	Events    EventDrainer
	Recording *RecordingPresenter
	Session   *SessionPresenter
	Schedule  func()
}

func NewLoop(events EventDrainer, rec *RecordingPresenter, sess *SessionPresenter, schedule func()) *Loop {
	return &Loop{Events: events, Recording: rec, Session: sess, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	// Observer callbacks first so the presenters see the newest events.
	if l.Events != nil {
		l.Events.Drain()
	}
	if l.Recording != nil {
		l.Recording.Tick(now)
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
