package recording

// State is the lifecycle state of the recording session.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateWriting
	StateFinishing
	StateCancelling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateWriting:
		return "writing"
	case StateFinishing:
		return "finishing"
	case StateCancelling:
		return "cancelling"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether frames are accepted in s.
func (s State) Active() bool { return s == StateStarting || s == StateWriting }

var edges = map[State][]State{
	StateIdle:       {StateStarting},
	StateStarting:   {StateWriting, StateFinishing, StateCancelling},
	StateWriting:    {StateFinishing, StateCancelling, StateFailed},
	StateFinishing:  {StateIdle},
	StateCancelling: {StateIdle},
	StateFailed:     {StateIdle},
}

// ValidTransition reports whether from -> to is an edge of the lifecycle.
func ValidTransition(from, to State) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}
