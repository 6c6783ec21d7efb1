package model

import (
	"time"
)

// SessionModel tracks the current recording duration and the accumulated
// recorded time. It is fed from duration events rather than wall time so the
// figures match what ends up in the file.
// The zero value is ready to use.
type SessionModel struct {
	active              bool
	lastSessionDuration time.Duration
	accumulated         time.Duration
	recordings          int
}

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnElapsed updates the model with the recording state and the elapsed
// duration reported by the session. Elapsed values arriving after the
// recording ended are ignored.
func (m *SessionModel) OnElapsed(recording bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	if recording {
		if !m.active { // transition off -> on
			m.active = true
			m.lastSessionDuration = 0
			m.recordings++
		}
		if elapsed > m.lastSessionDuration {
			m.lastSessionDuration = elapsed
		}
	} else if m.active { // transition on -> off
		if elapsed > m.lastSessionDuration {
			m.lastSessionDuration = elapsed
		}
		m.accumulated += m.lastSessionDuration
		m.active = false
	}
}

// Values returns the current session duration and the total accumulated duration.
// The total includes the ongoing session when active.
func (m *SessionModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	session = m.lastSessionDuration
	total = m.accumulated
	if m.active {
		total += session
	}
	return
}

// Recordings returns how many recordings were started.
func (m *SessionModel) Recordings() int {
	if m == nil {
		return 0
	}
	return m.recordings
}
