package model

import (
	"sync"
)

// Status is a snapshot of what the status window shows.
type Status struct {
	State      string
	Recording  bool
	Position   string
	Zoom       float64
	Message    string
	LastTarget string
	// Version increases on every change so views can skip redundant redraws.
	Version uint64
}

// StatusModel holds the recorder status. The zero value is idle and usable.
// Concurrency-safe because button callbacks and presenter ticks may race.
type StatusModel struct {
	mu sync.Mutex
	st Status
}

func (m *StatusModel) update(fn func(*Status) bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn(&m.st) {
		m.st.Version++
	}
}

// SetState stores the recording state name.
func (m *StatusModel) SetState(state string, recording bool) {
	m.update(func(s *Status) bool {
		if s.State == state && s.Recording == recording {
			return false
		}
		s.State, s.Recording = state, recording
		return true
	})
}

// SetMessage stores the latest user-facing message.
func (m *StatusModel) SetMessage(msg string) {
	m.update(func(s *Status) bool {
		if s.Message == msg {
			return false
		}
		s.Message = msg
		return true
	})
}

// SetLastTarget stores the path of the last written file.
func (m *StatusModel) SetLastTarget(path string) {
	m.update(func(s *Status) bool {
		if s.LastTarget == path {
			return false
		}
		s.LastTarget = path
		return true
	})
}

func (m *StatusModel) SetPosition(pos string) {
	m.update(func(s *Status) bool {
		if s.Position == pos {
			return false
		}
		s.Position = pos
		return true
	})
}

func (m *StatusModel) SetZoom(z float64) {
	m.update(func(s *Status) bool {
		if s.Zoom == z {
			return false
		}
		s.Zoom = z
		return true
	})
}

// Recording reports whether a recording is active.
func (m *StatusModel) Recording() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Recording
}

// Message returns the latest message.
func (m *StatusModel) Message() string {
	if m == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Message
}

// Snapshot returns a copy of the status.
func (m *StatusModel) Snapshot() Status {
	if m == nil {
		return Status{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}
