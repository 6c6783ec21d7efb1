// Package capture owns the capture devices and their configuration, and
// routes every captured sample to the still-image path and the recording
// session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/camrec/domain/events"
	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/queue"
	"github.com/soocke/camrec/domain/recording"
)

// Options configures a Coordinator.
type Options struct {
	Position          media.Position
	FrameRate         int
	PressureFrameRate int
	Width             int
	Height            int
	Audio             bool
	ConfigQueueDepth  int
	FrameQueueDepth   int
	Still             StillWriter
}

// Coordinator serializes device configuration and recording lifecycle calls
// on a configuration queue, and frame processing on a frame delivery queue.
type Coordinator struct {
	opts     Options
	provider DeviceProvider
	audio    AudioSource
	session  *recording.Session
	events   events.Observer
	metrics  *Metrics
	logger   *slog.Logger

	configQ *queue.Queue
	frameQ  *queue.Queue

	// Owned by the configuration queue.
	device       VideoDevice
	position     media.Position
	audioRunning bool

	running   atomic.Bool
	throttled atomic.Bool
	pressure  atomic.Int32

	cfg atomic.Pointer[DeviceConfiguration]

	stillPending atomic.Bool
	stills       sync.WaitGroup

	delivered atomic.Uint64
	skipped   atomic.Uint64
	stillsOut atomic.Uint64
	lastFrame atomic.Int64
}

// NewCoordinator wires a coordinator. audio may be nil.
func NewCoordinator(opts Options, provider DeviceProvider, audio AudioSource, session *recording.Session,
	obs events.Observer, metrics *Metrics, logger *slog.Logger) *Coordinator {
	if obs == nil {
		obs = events.NopObserver{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	return &Coordinator{
		opts:     opts,
		provider: provider,
		audio:    audio,
		session:  session,
		events:   obs,
		metrics:  metrics,
		logger:   logger,
		position: opts.Position,
		configQ:  queue.New("config", opts.ConfigQueueDepth, logger),
		frameQ:   queue.New("frames", opts.FrameQueueDepth, logger),
	}
}

// Configuration returns the active device configuration.
func (c *Coordinator) Configuration() DeviceConfiguration {
	if cfg := c.cfg.Load(); cfg != nil {
		return *cfg
	}
	return DeviceConfiguration{Position: c.opts.Position}
}

// Session returns the recording session fed by the coordinator.
func (c *Coordinator) Session() *recording.Session { return c.session }

func (c *Coordinator) onConfig(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	if qerr := c.configQ.Sync(ctx, func(qctx context.Context) { err = fn(qctx) }); qerr != nil {
		return qerr
	}
	return err
}

// Reconfigure rebuilds the video input for the current position, the audio
// input and the output quality and frame rate. On failure the previous
// device stays active.
func (c *Coordinator) Reconfigure(ctx context.Context) error {
	return c.onConfig(ctx, c.reconfigure)
}

func (c *Coordinator) reconfigure(ctx context.Context) error {
	dev, err := c.provider.OpenVideo(c.position)
	if err != nil {
		return wrapConfigErr("open "+c.position.String(), err)
	}
	caps := dev.Capabilities()
	prev := c.cfg.Load()
	rate := c.opts.FrameRate
	if c.throttled.Load() {
		rate = c.opts.PressureFrameRate
	}
	cfg := DeviceConfiguration{
		Position:     c.position,
		Zoom:         caps.ClampZoom(1),
		FrameRate:    caps.ClampFrameRate(rate),
		MinFrameRate: caps.MinFrameRate,
		MaxFrameRate: caps.MaxFrameRate,
		Focus:        media.Point{X: 0.5, Y: 0.5},
		Width:        c.opts.Width,
		Height:       c.opts.Height,
	}
	if prev != nil {
		cfg.Focus = prev.Focus
	}
	if err := dev.Apply(cfg); err != nil {
		c.discardDevice(dev)
		return &DeviceConfigurationError{Op: "apply " + c.position.String(), Err: err}
	}

	// The new device runs before the old one stops, so a failed start
	// leaves the previous device and configuration in place.
	old := c.device
	if c.running.Load() && dev != old {
		if err := dev.Start(c); err != nil {
			c.discardDevice(dev)
			return wrapConfigErr("start "+c.position.String(), err)
		}
	}
	if old != nil && old != dev {
		if err := old.Stop(); err != nil {
			c.logger.Warn("stop previous device", "error", err)
		}
	}
	c.device = dev
	c.storeConfig(cfg)
	if err := c.syncAudio(); err != nil {
		return err
	}
	c.logger.Info("capture configured",
		"position", cfg.Position.String(),
		"frame_rate", cfg.FrameRate,
		"width", cfg.Width,
		"height", cfg.Height,
		"audio", c.audioRunning)
	return nil
}

// discardDevice stops a device that was opened but never committed.
func (c *Coordinator) discardDevice(dev VideoDevice) {
	if dev == c.device {
		return
	}
	if err := dev.Stop(); err != nil {
		c.logger.Warn("discard device", "position", dev.Position().String(), "error", err)
	}
}

// syncAudio starts or stops the audio input to match the running state.
func (c *Coordinator) syncAudio() error {
	want := c.running.Load() && c.opts.Audio && c.audio != nil
	switch {
	case want && !c.audioRunning:
		if err := c.audio.Start(c); err != nil {
			return wrapConfigErr("start audio", err)
		}
		c.audioRunning = true
	case !want && c.audioRunning:
		if err := c.audio.Stop(); err != nil {
			c.logger.Warn("stop audio", "error", err)
		}
		c.audioRunning = false
	}
	return nil
}

func (c *Coordinator) storeConfig(cfg DeviceConfiguration) {
	c.cfg.Store(&cfg)
	c.metrics.frameRate.Set(float64(cfg.FrameRate))
	c.metrics.zoom.Set(cfg.Zoom)
	if c.session != nil {
		c.session.SetFrameRate(cfg.FrameRate)
	}
}

// apply installs a modified copy of the active configuration.
func (c *Coordinator) apply(op string, mutate func(*DeviceConfiguration)) (DeviceConfiguration, error) {
	if c.device == nil {
		return DeviceConfiguration{}, &DeviceConfigurationError{Op: op, Err: errors.New("no device configured")}
	}
	next := *c.cfg.Load()
	mutate(&next)
	if err := c.device.Apply(next); err != nil {
		return DeviceConfiguration{}, &DeviceConfigurationError{Op: op, Err: err}
	}
	c.storeConfig(next)
	return next, nil
}

// Start starts capturing, configuring the device first if needed.
func (c *Coordinator) Start(ctx context.Context) error {
	return c.onConfig(ctx, func(qctx context.Context) error {
		if c.running.Load() {
			return nil
		}
		if c.device == nil {
			if err := c.reconfigure(qctx); err != nil {
				return err
			}
		}
		if err := c.device.Start(c); err != nil {
			return wrapConfigErr("start "+c.position.String(), err)
		}
		c.running.Store(true)
		return c.syncAudio()
	})
}

// Stop stops the devices. An active recording keeps its state.
func (c *Coordinator) Stop(ctx context.Context) error {
	return c.onConfig(ctx, func(context.Context) error {
		if !c.running.Load() {
			return nil
		}
		c.running.Store(false)
		if c.device != nil {
			if err := c.device.Stop(); err != nil {
				c.logger.Warn("stop device", "error", err)
			}
		}
		return c.syncAudio()
	})
}

// Running reports whether capture is active.
func (c *Coordinator) Running() bool { return c.running.Load() }

// SwitchCamera flips the device position. The zoom factor in effect before
// the switch is re-applied to the new device.
func (c *Coordinator) SwitchCamera(ctx context.Context) error {
	return c.onConfig(ctx, func(qctx context.Context) error {
		zoom := c.Configuration().Zoom
		prevPos := c.position
		c.position = prevPos.Opposite()
		if err := c.Reconfigure(qctx); err != nil {
			c.position = prevPos
			return err
		}
		if zoom > 1 {
			if _, err := c.Zoom(qctx, zoom); err != nil {
				c.logger.Warn("restore zoom after switch", "zoom", zoom, "error", err)
			}
		}
		c.metrics.switches.Inc()
		c.logger.Info("camera switched", "position", c.position.String())
		c.events.OnCameraSwitch(c.position)
		return nil
	})
}

// SetFrameRate clamps target into the device's supported range and applies
// it. It returns the rate in effect.
func (c *Coordinator) SetFrameRate(ctx context.Context, target int) (int, error) {
	var applied int
	err := c.onConfig(ctx, func(context.Context) error {
		if c.device == nil {
			return &DeviceConfigurationError{Op: "frame rate", Err: errors.New("no device configured")}
		}
		rate := c.device.Capabilities().ClampFrameRate(target)
		cfg, err := c.apply("frame rate", func(cfg *DeviceConfiguration) { cfg.FrameRate = rate })
		if err != nil {
			return err
		}
		applied = cfg.FrameRate
		c.logger.Info("frame rate set", "requested", target, "applied", applied)
		return nil
	})
	return applied, err
}

// ApplyPressure records the system pressure level. Serious or critical
// pressure throttles the frame rate while recording; it is restored once
// pressure is back to nominal or fair or the recording ends.
func (c *Coordinator) ApplyPressure(ctx context.Context, level PressureLevel) error {
	return c.onConfig(ctx, func(qctx context.Context) error {
		c.pressure.Store(int32(level))
		if level == PressureShutdown {
			c.logger.Error("system pressure at shutdown level", "recording", c.recordingActive())
			return nil
		}
		return c.evaluatePressure(qctx)
	})
}

func (c *Coordinator) recordingActive() bool {
	return c.session != nil && c.session.State().Active()
}

// evaluatePressure throttles or restores the frame rate for the last
// reported level and the current recording state. Runs on the
// configuration queue.
func (c *Coordinator) evaluatePressure(ctx context.Context) error {
	level := PressureLevel(c.pressure.Load())
	high := level == PressureSerious || level == PressureCritical
	switch throttle := high && c.recordingActive(); {
	case throttle && !c.throttled.Load():
		if _, err := c.SetFrameRate(ctx, c.opts.PressureFrameRate); err != nil {
			return err
		}
		c.throttled.Store(true)
		c.logger.Warn("frame rate throttled", "pressure", level.String(), "frame_rate", c.opts.PressureFrameRate)
	case !throttle && c.throttled.Load() && level != PressureShutdown:
		if _, err := c.SetFrameRate(ctx, c.opts.FrameRate); err != nil {
			return err
		}
		c.throttled.Store(false)
		c.logger.Info("frame rate restored", "pressure", level.String(), "frame_rate", c.opts.FrameRate)
	}
	return nil
}

// Zoom clamps factor into the device range and applies it.
func (c *Coordinator) Zoom(ctx context.Context, factor float64) (float64, error) {
	var applied float64
	err := c.onConfig(ctx, func(context.Context) error {
		if c.device == nil {
			return &DeviceConfigurationError{Op: "zoom", Err: errors.New("no device configured")}
		}
		z := c.device.Capabilities().ClampZoom(factor)
		cfg, err := c.apply("zoom", func(cfg *DeviceConfiguration) { cfg.Zoom = z })
		if err != nil {
			return err
		}
		applied = cfg.Zoom
		c.events.OnZoomChange(applied)
		return nil
	})
	return applied, err
}

// Focus moves the point of interest.
func (c *Coordinator) Focus(ctx context.Context, p media.Point) error {
	return c.onConfig(ctx, func(context.Context) error {
		if c.device != nil && !c.device.Capabilities().Focus {
			return &DeviceConfigurationError{Op: "focus", Err: ErrUnsupported}
		}
		cfg, err := c.apply("focus", func(cfg *DeviceConfiguration) { cfg.Focus = p.Clamp() })
		if err != nil {
			return err
		}
		c.events.OnFocus(cfg.Focus)
		return nil
	})
}

// SetTorch turns the torch on or off.
func (c *Coordinator) SetTorch(ctx context.Context, on bool) error {
	return c.onConfig(ctx, func(context.Context) error {
		if c.device != nil && on && !c.device.Capabilities().Torch {
			return &DeviceConfigurationError{Op: "torch", Err: ErrUnsupported}
		}
		_, err := c.apply("torch", func(cfg *DeviceConfiguration) { cfg.Torch = on })
		return err
	})
}

// StartRecording starts a recording session.
func (c *Coordinator) StartRecording(ctx context.Context) error {
	return c.onConfig(ctx, func(qctx context.Context) error {
		if c.session == nil {
			return errors.New("no recording session")
		}
		if err := c.session.Start(qctx); err != nil {
			return err
		}
		c.settlePressure(qctx)
		return nil
	})
}

// StopRecording finishes the active recording.
func (c *Coordinator) StopRecording(ctx context.Context) error {
	return c.onConfig(ctx, func(qctx context.Context) error {
		if c.session == nil {
			return errors.New("no recording session")
		}
		if err := c.session.Finish(qctx); err != nil {
			return err
		}
		c.settlePressure(qctx)
		return nil
	})
}

// CancelRecording discards the active recording.
func (c *Coordinator) CancelRecording(ctx context.Context) error {
	return c.onConfig(ctx, func(qctx context.Context) error {
		if c.session == nil {
			return errors.New("no recording session")
		}
		if err := c.session.Cancel(qctx); err != nil {
			return err
		}
		c.settlePressure(qctx)
		return nil
	})
}

// settlePressure re-evaluates throttling after the recording state changed.
// Failures are logged; the recording call itself already succeeded.
func (c *Coordinator) settlePressure(ctx context.Context) {
	if c.device == nil {
		return
	}
	if err := c.evaluatePressure(ctx); err != nil {
		c.logger.Warn("apply pressure", "level", PressureLevel(c.pressure.Load()).String(), "error", err)
	}
}

// CapturePhoto routes the first video frame delivered after the delay to
// the still-image path.
func (c *Coordinator) CapturePhoto(after time.Duration) {
	c.events.OnWillCaptureImage()
	if after <= 0 {
		c.stillPending.Store(true)
		return
	}
	time.AfterFunc(after, func() { c.stillPending.Store(true) })
}

// DeliverFrame implements FrameSink. It never blocks: when the frame
// delivery queue is full the sample is skipped.
func (c *Coordinator) DeliverFrame(sample media.FrameSample) {
	err := c.frameQ.TryAsync(func(context.Context) { c.process(sample) })
	if err == nil {
		return
	}
	c.skipped.Add(1)
	c.metrics.skipped.WithLabelValues(sample.Kind.String()).Inc()
	if sample.Kind == media.TrackVideo {
		RecycleFrame(sample.Image)
	}
}

// DeviceInterrupted implements FrameSink.
func (c *Coordinator) DeviceInterrupted(err error) {
	c.Interrupt(err)
}

// Interrupt reports a device interruption to the observer. An active
// recording is left running.
func (c *Coordinator) Interrupt(err error) {
	var ie *InterruptionError
	if !errors.As(err, &ie) {
		err = &InterruptionError{Source: "capture", Err: err}
	}
	c.metrics.interruptions.Inc()
	c.logger.Warn("capture interrupted", "error", err)
	c.events.OnInterrupt(err)
}

func (c *Coordinator) process(sample media.FrameSample) {
	if sample.Kind == media.TrackVideo {
		defer RecycleFrame(sample.Image)
		if sample.Image != nil && c.stillPending.CompareAndSwap(true, false) {
			c.captureStill(sample)
		}
	}
	if c.session != nil {
		c.session.Submit(sample)
	}
	c.delivered.Add(1)
	c.lastFrame.Store(time.Now().UnixNano())
	c.metrics.delivered.WithLabelValues(sample.Kind.String()).Inc()
}

// captureStill copies the frame before returning; encoding happens off the
// frame delivery queue.
func (c *Coordinator) captureStill(sample media.FrameSample) {
	img := c.opts.Still.Prepare(sample.Image)
	c.stills.Add(1)
	go func() {
		defer c.stills.Done()
		target, err := c.opts.Still.Save(img)
		if err != nil {
			c.metrics.stills.WithLabelValues("failed").Inc()
			c.logger.Error("still capture failed", "error", err)
			c.events.OnFail(fmt.Errorf("still capture: %w", err))
			return
		}
		c.stillsOut.Add(1)
		c.metrics.stills.WithLabelValues("saved").Inc()
		c.logger.Info("still captured", "target", target.Path)
		c.events.OnCaptureImage(target)
	}()
}

// Stats returns delivery counters and the active configuration.
func (c *Coordinator) Stats() Stats {
	cfg := c.Configuration()
	st := Stats{
		Delivered: c.delivered.Load(),
		Skipped:   c.skipped.Load(),
		Stills:    c.stillsOut.Load(),
		Position:  cfg.Position,
		FrameRate: cfg.FrameRate,
		Zoom:      cfg.Zoom,
	}
	if ns := c.lastFrame.Load(); ns > 0 {
		st.LastFrame = time.Unix(0, ns)
		st.LatestFrameAge = time.Since(st.LastFrame)
	}
	st.Throttled = c.throttled.Load()
	st.Running = c.running.Load()
	return st
}

// Close stops capture, waits for pending work and releases the queues. An
// active recording is finished first.
func (c *Coordinator) Close(ctx context.Context) error {
	if c.session != nil && c.session.State().Active() {
		if err := c.StopRecording(ctx); err != nil && !recording.IsPrecondition(err) {
			c.logger.Warn("finish on close", "error", err)
		}
	}
	err := c.Stop(ctx)
	c.configQ.Close()
	c.frameQ.Close()
	c.stills.Wait()
	if c.session != nil {
		if werr := c.session.WaitFlushed(ctx); werr != nil && err == nil {
			err = werr
		}
	}
	if c.audio != nil {
		if cerr := c.audio.Close(); cerr != nil {
			c.logger.Warn("close audio", "error", cerr)
		}
	}
	return err
}

func wrapConfigErr(op string, err error) error {
	var dce *DeviceConfigurationError
	if errors.As(err, &dce) {
		return err
	}
	return &DeviceConfigurationError{Op: op, Err: err}
}
