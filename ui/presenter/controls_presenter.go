package presenter

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/camrec/domain/capture"
	"github.com/soocke/camrec/domain/recording"
)

// Recorder narrows what the controls need from the capture coordinator.
type Recorder interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	CancelRecording(ctx context.Context) error
	SwitchCamera(ctx context.Context) error
	Zoom(ctx context.Context, factor float64) (float64, error)
	CapturePhoto(after time.Duration)
	Configuration() capture.DeviceConfiguration
}

// RecordingState reports whether a recording is active.
type RecordingState interface{ Recording() bool }

// MessageSink receives user-facing error messages.
type MessageSink interface{ SetMessage(string) }

// ControlsPresenter turns button presses into coordinator calls. Calls run
// off the UI thread because they wait on the configuration queue.
type ControlsPresenter struct {
	rec     Recorder
	state   RecordingState
	msgs    MessageSink
	logger  *slog.Logger
	timeout time.Duration

	// Run executes a control action; defaults to a new goroutine.
	Run func(func())
	// PhotoDelay is the delay between the button press and the capture.
	PhotoDelay time.Duration
}

func NewControlsPresenter(rec Recorder, state RecordingState, msgs MessageSink, logger *slog.Logger) *ControlsPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlsPresenter{
		rec:     rec,
		state:   state,
		msgs:    msgs,
		logger:  logger,
		timeout: 10 * time.Second,
		Run:     func(fn func()) { go fn() },
	}
}

func (c *ControlsPresenter) do(op string, fn func(ctx context.Context) error) {
	if c == nil || c.rec == nil {
		return
	}
	c.Run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			if recording.IsPrecondition(err) {
				c.logger.Debug("control ignored", "op", op, "error", err)
			} else {
				c.logger.Error("control failed", "op", op, "error", err)
			}
			if c.msgs != nil {
				c.msgs.SetMessage(op + ": " + err.Error())
			}
		}
	})
}

// ToggleRecording starts a recording when idle and finishes it otherwise.
func (c *ControlsPresenter) ToggleRecording() {
	if c == nil || c.state == nil {
		return
	}
	if c.state.Recording() {
		c.do("stop", c.rec.StopRecording)
		return
	}
	c.do("record", c.rec.StartRecording)
}

// Cancel discards the active recording.
func (c *ControlsPresenter) Cancel() { c.do("cancel", c.rec.CancelRecording) }

// SwitchCamera flips between the back and front positions.
func (c *ControlsPresenter) SwitchCamera() { c.do("switch camera", c.rec.SwitchCamera) }

// ZoomBy multiplies the current zoom factor by step.
func (c *ControlsPresenter) ZoomBy(step float64) {
	c.do("zoom", func(ctx context.Context) error {
		cur := c.rec.Configuration().Zoom
		if cur <= 0 {
			cur = 1
		}
		_, err := c.rec.Zoom(ctx, cur*step)
		return err
	})
}

// Photo requests a still image.
func (c *ControlsPresenter) Photo() {
	if c == nil || c.rec == nil {
		return
	}
	c.rec.CapturePhoto(c.PhotoDelay)
}
