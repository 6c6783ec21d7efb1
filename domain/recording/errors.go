package recording

import (
	"errors"
	"fmt"

	"github.com/soocke/camrec/domain/media"
)

var (
	ErrAlreadyRecording  = errors.New("recording already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrInsufficientSpace = errors.New("insufficient free space")

	// ErrEmptySession is reported by writers whose Finish ran before any
	// sample was written. The session keeps the target in that case.
	ErrEmptySession = errors.New("recording finished without samples")
)

// PreconditionError reports a call made in a state that does not allow it,
// or with arguments the session can never accept. It is a caller bug and is
// not retried.
type PreconditionError struct {
	Op    string
	State State
	Err   error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// EncoderError wraps a failure reported by the writer.
type EncoderError struct {
	Op     string
	Target media.Target
	Err    error
}

func (e *EncoderError) Error() string {
	if e.Target.Empty() {
		return fmt.Sprintf("encoder %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("encoder %s %s: %v", e.Op, e.Target.Path, e.Err)
}

func (e *EncoderError) Unwrap() error { return e.Err }

// IsPrecondition reports whether err is a *PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
