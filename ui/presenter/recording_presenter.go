package presenter

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/soocke/camrec/domain/events"
	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
	"github.com/soocke/camrec/ui/model"
)

// StatusView shows the recorder status.
type StatusView interface {
	SetStateLabel(string)
	SetMessage(string)
	SetCamera(position string, zoom float64)
	SetRecordingControls(recording bool)
	ConfigEditable(bool)
}

// RecordingPresenter observes recording and capture events and reflects them
// in the status model. Events are delivered on the UI thread by the main
// loop; Tick pushes model changes to the view.
type RecordingPresenter struct {
	status *model.StatusModel
	view   StatusView
	logger *slog.Logger

	elapsed  time.Duration
	rendered uint64
}

var _ events.Observer = (*RecordingPresenter)(nil)

func NewRecordingPresenter(status *model.StatusModel, view StatusView, logger *slog.Logger) *RecordingPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingPresenter{status: status, view: view, logger: logger}
}

// OnStateChange is a recording.Listener keeping the state label current.
// It runs on the goroutine performing the transition.
func (p *RecordingPresenter) OnStateChange(_, next recording.State) {
	if p == nil {
		return
	}
	p.status.SetState(next.String(), next.Active())
}

// Recording reports whether a recording is active.
func (p *RecordingPresenter) Recording() bool { return p != nil && p.status.Recording() }

// Elapsed returns the last reported recording duration.
func (p *RecordingPresenter) Elapsed() time.Duration {
	if p == nil {
		return 0
	}
	return p.elapsed
}

func (p *RecordingPresenter) OnWillBegin(t media.Target) {
	p.elapsed = 0
	p.status.SetMessage("Preparing " + filepath.Base(t.Path))
}

func (p *RecordingPresenter) OnBegin(t media.Target) {
	p.status.SetMessage("Recording " + filepath.Base(t.Path))
}

func (p *RecordingPresenter) OnDurationUpdate(elapsed time.Duration) {
	p.elapsed = elapsed
}

func (p *RecordingPresenter) OnStop(t media.Target) {
	p.status.SetMessage("Saving " + filepath.Base(t.Path))
}

func (p *RecordingPresenter) OnFinish(t media.Target) {
	p.status.SetLastTarget(t.Path)
	p.status.SetMessage("Saved " + t.Path)
}

func (p *RecordingPresenter) OnFail(err error) {
	var ee *recording.EncoderError
	if errors.As(err, &ee) {
		p.status.SetMessage("Recording failed: " + ee.Err.Error())
		return
	}
	p.status.SetMessage("Error: " + err.Error())
}

func (p *RecordingPresenter) OnCancel(media.Target) {
	p.status.SetMessage("Recording cancelled")
}

func (p *RecordingPresenter) OnCameraSwitch(pos media.Position) {
	p.status.SetPosition(pos.String())
	p.status.SetMessage("Switched to " + pos.String() + " camera")
}

func (p *RecordingPresenter) OnFocus(pt media.Point) {
	p.status.SetMessage(fmt.Sprintf("Focus %.2f,%.2f", pt.X, pt.Y))
}

func (p *RecordingPresenter) OnZoomChange(factor float64) {
	p.status.SetZoom(factor)
}

func (p *RecordingPresenter) OnInterrupt(err error) {
	p.status.SetMessage("Capture interrupted: " + err.Error())
}

func (p *RecordingPresenter) OnWillCaptureImage() {
	p.status.SetMessage("Taking photo...")
}

func (p *RecordingPresenter) OnCaptureImage(t media.Target) {
	p.status.SetLastTarget(t.Path)
	p.status.SetMessage("Photo saved " + t.Path)
}

// Tick pushes the status to the view when it changed since the last Tick.
func (p *RecordingPresenter) Tick(now time.Time) {
	if p == nil || p.status == nil || p.view == nil {
		return
	}
	st := p.status.Snapshot()
	if st.Version == p.rendered {
		return
	}
	p.rendered = st.Version
	state := st.State
	if state == "" {
		state = recording.StateIdle.String()
	}
	p.view.SetStateLabel("State: " + state)
	p.view.SetMessage(st.Message)
	p.view.SetCamera(st.Position, st.Zoom)
	p.view.SetRecordingControls(st.Recording)
	p.view.ConfigEditable(state == recording.StateIdle.String())
}
