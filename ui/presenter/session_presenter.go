package presenter

import (
	"time"

	"github.com/soocke/camrec/ui/model"
)

// ElapsedSource reports the recording state and last reported duration.
type ElapsedSource interface {
	Recording() bool
	Elapsed() time.Duration
}

// SessionView displays formatted session and total durations.
type SessionView interface {
	SetSession(session, total time.Duration)
}

// SessionPresenter formats session and total durations from the model to the view.
type SessionPresenter struct {
	sess *model.SessionModel
	src  ElapsedSource
	view SessionView
}

// NewSessionPresenter returns a new SessionPresenter.
func NewSessionPresenter(sess *model.SessionModel, src ElapsedSource, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, src: src, view: view}
}

// Tick updates the presenter: advance the session model and push values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.src == nil || p.view == nil {
		return
	}
	p.sess.OnElapsed(p.src.Recording(), p.src.Elapsed())
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
}
