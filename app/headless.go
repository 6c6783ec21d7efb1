package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soocke/camrec/domain/events"
	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
)

// HeadlessOptions control a recording made without the status window.
type HeadlessOptions struct {
	// Duration of the recording; zero records until ctx is done.
	Duration time.Duration
	// Photo captures a still image right after the recording starts.
	Photo bool
}

type result struct {
	target media.Target
	err    error
}

// headlessObserver logs every event and reports how the recording ended.
type headlessObserver struct {
	logger *slog.Logger
	done   chan result
}

var _ events.Observer = (*headlessObserver)(nil)

func newHeadlessObserver(logger *slog.Logger) *headlessObserver {
	return &headlessObserver{logger: logger, done: make(chan result, 1)}
}

func (o *headlessObserver) end(r result) {
	select {
	case o.done <- r:
	default:
	}
}

func (o *headlessObserver) OnWillBegin(t media.Target) {
	o.logger.Info("recording starting", "target", t.Path)
}
func (o *headlessObserver) OnBegin(t media.Target) { o.logger.Info("recording", "target", t.Path) }
func (o *headlessObserver) OnDurationUpdate(d time.Duration) {
	o.logger.Debug("duration", "elapsed", d)
}
func (o *headlessObserver) OnStop(t media.Target) { o.logger.Info("flushing", "target", t.Path) }
func (o *headlessObserver) OnFinish(t media.Target) {
	o.logger.Info("recording saved", "target", t.Path)
	o.end(result{target: t})
}
func (o *headlessObserver) OnFail(err error) {
	var ee *recording.EncoderError
	if errors.As(err, &ee) {
		o.logger.Error("recording failed", "error", err)
		o.end(result{target: ee.Target, err: err})
		return
	}
	o.logger.Error("capture error", "error", err)
}
func (o *headlessObserver) OnCancel(t media.Target) {
	o.logger.Info("recording cancelled", "target", t.Path)
	o.end(result{target: t, err: context.Canceled})
}
func (o *headlessObserver) OnCameraSwitch(p media.Position) {
	o.logger.Info("camera switched", "position", p.String())
}
func (o *headlessObserver) OnFocus(p media.Point) { o.logger.Info("focus", "x", p.X, "y", p.Y) }
func (o *headlessObserver) OnZoomChange(f float64) {
	o.logger.Info("zoom", "factor", f)
}
func (o *headlessObserver) OnInterrupt(err error) {
	o.logger.Warn("capture interrupted", "error", err)
}
func (o *headlessObserver) OnWillCaptureImage() { o.logger.Info("taking photo") }
func (o *headlessObserver) OnCaptureImage(t media.Target) {
	o.logger.Info("photo saved", "target", t.Path)
}

// RunHeadless records one file and returns its target once it is flushed.
// Cancelling ctx ends the recording normally; the file is still finished.
func RunHeadless(ctx context.Context, c *AppContainer, opts HeadlessOptions) (media.Target, error) {
	obs := newHeadlessObserver(c.Logger.With("component", "headless"))
	c.Dispatcher.SetObserver(obs)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		c.MainLoop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	pctx, stopPressure := context.WithCancel(ctx)
	defer stopPressure()
	shutdown := func() {
		stopPressure()
		sctx, cancel := context.WithTimeout(context.Background(), c.Config.FinishTimeout()+5*time.Second)
		defer cancel()
		if err := c.Coordinator.Close(sctx); err != nil {
			c.Logger.Warn("shutdown", "error", err)
		}
	}

	if err := c.Coordinator.Start(ctx); err != nil {
		shutdown()
		return media.Target{}, fmt.Errorf("start capture: %w", err)
	}
	go NewPressureMonitor(c.Coordinator, 2*time.Second, c.Logger).Run(pctx)
	if err := c.Coordinator.StartRecording(ctx); err != nil {
		shutdown()
		return media.Target{}, fmt.Errorf("start recording: %w", err)
	}
	if opts.Photo {
		c.Coordinator.CapturePhoto(0)
	}

	var timer <-chan time.Time
	if opts.Duration > 0 {
		t := time.NewTimer(opts.Duration)
		defer t.Stop()
		timer = t.C
	}
	select {
	case r := <-obs.done:
		shutdown()
		return r.target, r.err
	case <-timer:
	case <-ctx.Done():
		c.Logger.Info("interrupted, finishing recording")
	}

	sctx, cancel := context.WithTimeout(context.Background(), c.Config.FinishTimeout()+5*time.Second)
	defer cancel()
	if err := c.Coordinator.StopRecording(sctx); err != nil {
		shutdown()
		return media.Target{}, fmt.Errorf("stop recording: %w", err)
	}
	var r result
	select {
	case r = <-obs.done:
	case <-sctx.Done():
		r.err = fmt.Errorf("waiting for recording to finish: %w", sctx.Err())
	}
	shutdown()
	return r.target, r.err
}
