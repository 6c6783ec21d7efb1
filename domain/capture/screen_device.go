package capture

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/soocke/camrec/domain/media"
)

const (
	deviceStatsLogInterval = 5 * time.Second
	// maxGrabFailures consecutive failed grabs are reported as an
	// interruption.
	maxGrabFailures = 30

	screenMinFrameRate = 1
	screenMaxFrameRate = 60
	screenMaxZoom      = 8.0
)

// Grabber captures rectangles of the screen. Grab returns a new image the
// caller owns.
type Grabber interface {
	Bounds() (image.Rectangle, error)
	Grab(r image.Rectangle) (*image.RGBA, error)
}

// ScreenProvider opens screen-backed video devices. The back position
// captures the whole screen, the front position a configured region.
type ScreenProvider struct {
	grabber Grabber
	region  image.Rectangle
	clock   *media.HostClock
	logger  *slog.Logger
}

// NewScreenProvider returns a provider grabbing the real screen. An empty
// region makes the front position capture the whole screen too.
func NewScreenProvider(region image.Rectangle, clock *media.HostClock, logger *slog.Logger) *ScreenProvider {
	return NewScreenProviderWithGrabber(defaultGrabber(), region, clock, logger)
}

// NewScreenProviderWithGrabber is NewScreenProvider with a custom grabber.
func NewScreenProviderWithGrabber(g Grabber, region image.Rectangle, clock *media.HostClock, logger *slog.Logger) *ScreenProvider {
	if clock == nil {
		clock = media.NewHostClock()
	}
	return &ScreenProvider{grabber: g, region: region, clock: clock, logger: logger}
}

func (p *ScreenProvider) OpenVideo(pos media.Position) (VideoDevice, error) {
	bounds, err := p.grabber.Bounds()
	if err != nil {
		return nil, &DeviceConfigurationError{Op: "open " + pos.String(), Err: err}
	}
	source := bounds
	if pos == media.PositionFront && !p.region.Empty() {
		source = p.region.Intersect(bounds)
		if source.Empty() {
			return nil, &DeviceConfigurationError{
				Op:  "open " + pos.String(),
				Err: fmt.Errorf("region %v outside screen %v", p.region, bounds),
			}
		}
	}
	d := &screenDevice{
		pos:     pos,
		source:  source,
		grabber: p.grabber,
		clock:   p.clock,
		logger:  p.logger,
	}
	d.cfg.Store(&DeviceConfiguration{
		Position:  pos,
		Zoom:      1,
		FrameRate: 30,
		Focus:     media.Point{X: 0.5, Y: 0.5},
	})
	return d, nil
}

type screenDevice struct {
	pos     media.Position
	source  image.Rectangle
	grabber Grabber
	clock   *media.HostClock
	logger  *slog.Logger

	cfg atomic.Pointer[DeviceConfiguration]

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	captures     atomic.Uint64
	skipped      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

func (d *screenDevice) Position() media.Position { return d.pos }

func (d *screenDevice) Capabilities() Capabilities {
	return Capabilities{
		MinFrameRate: screenMinFrameRate,
		MaxFrameRate: screenMaxFrameRate,
		MinZoom:      1,
		MaxZoom:      screenMaxZoom,
		Focus:        true,
		Bounds:       d.source,
	}
}

func (d *screenDevice) Apply(cfg DeviceConfiguration) error {
	switch {
	case cfg.Torch:
		return fmt.Errorf("torch: %w", ErrUnsupported)
	case cfg.FrameRate < screenMinFrameRate || cfg.FrameRate > screenMaxFrameRate:
		return fmt.Errorf("frame rate %d outside [%d,%d]", cfg.FrameRate, screenMinFrameRate, screenMaxFrameRate)
	case cfg.Zoom < 1 || cfg.Zoom > screenMaxZoom:
		return fmt.Errorf("zoom %.2f outside [1,%.0f]", cfg.Zoom, screenMaxZoom)
	case cfg.Width < 0 || cfg.Height < 0:
		return errors.New("negative output size")
	}
	c := cfg
	d.cfg.Store(&c)
	return nil
}

func (d *screenDevice) Start(sink FrameSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(sink, d.stop, d.done)
	return nil
}

func (d *screenDevice) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stop, done := d.stop, d.done
	d.mu.Unlock()
	close(stop)
	<-done
	return nil
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

func (d *screenDevice) loop(sink FrameSink, stop, done chan struct{}) {
	defer close(done)
	rate := d.cfg.Load().FrameRate
	ticker := time.NewTicker(frameInterval(rate))
	defer ticker.Stop()
	logTicker := time.NewTicker(deviceStatsLogInterval)
	defer logTicker.Stop()
	failures := 0

	for {
		select {
		case <-stop:
			return
		case <-logTicker.C:
			d.logStats()
			continue
		case <-ticker.C:
		}

		cfg := d.cfg.Load()
		if cfg.FrameRate != rate {
			rate = cfg.FrameRate
			ticker.Reset(frameInterval(rate))
		}

		start := time.Now()
		pts := d.clock.At(start)
		raw, err := d.grabber.Grab(zoomRect(d.source, cfg.Zoom, cfg.Focus))
		if err != nil || raw == nil {
			d.skipped.Add(1)
			failures++
			if d.logger != nil && failures == 1 {
				d.logger.Error("screen grab", "position", d.pos.String(), "error", err)
			}
			if failures == maxGrabFailures {
				if err == nil {
					err = errors.New("no image")
				}
				sink.DeviceInterrupted(&InterruptionError{Source: "screen " + d.pos.String(), Err: err})
			}
			continue
		}
		failures = 0

		frame := normalizeFrame(raw, cfg.Width, cfg.Height)
		RecycleFrame(raw)
		d.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
		d.captures.Add(1)
		d.sequence.Add(1)
		sink.DeliverFrame(media.FrameSample{Kind: media.TrackVideo, PTS: pts, Image: frame})
	}
}

func (d *screenDevice) Stats() DeviceStats {
	captures := d.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(d.captureNanos.Load() / captures)
	}
	return DeviceStats{
		Captures:   captures,
		Skipped:    d.skipped.Load(),
		AvgCapture: avg,
		Sequence:   d.sequence.Load(),
	}
}

func (d *screenDevice) logStats() {
	if d.logger == nil {
		return
	}
	stats := d.Stats()
	d.logger.Debug("capture.stats",
		"position", d.pos.String(),
		"captures", stats.Captures,
		"skipped", stats.Skipped,
		"avg_capture", stats.AvgCapture,
	)
}

// zoomRect returns the part of src shown at zoom, centred on focus and kept
// inside src.
func zoomRect(src image.Rectangle, zoom float64, focus media.Point) image.Rectangle {
	if zoom <= 1 {
		return src
	}
	w := int(float64(src.Dx()) / zoom)
	h := int(float64(src.Dy()) / zoom)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	focus = focus.Clamp()
	cx := src.Min.X + int(focus.X*float64(src.Dx()))
	cy := src.Min.Y + int(focus.Y*float64(src.Dy()))
	x0 := clampInt(cx-w/2, src.Min.X, src.Max.X-w)
	y0 := clampInt(cy-h/2, src.Min.Y, src.Max.Y-h)
	return image.Rect(x0, y0, x0+w, y0+h)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeFrame copies raw into a pooled frame of the output size, scaling
// and cropping to fill when the sizes differ. Zero width or height keeps the
// source size.
func normalizeFrame(raw *image.RGBA, w, h int) *image.RGBA {
	b := raw.Bounds()
	if w <= 0 || h <= 0 {
		w, h = b.Dx(), b.Dy()
	}
	out := acquireFrame(w, h)
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(out, out.Rect, raw, b.Min, draw.Src)
		return out
	}
	scaled := imaging.Fill(raw, w, h, imaging.Center, imaging.Linear)
	copy(out.Pix, scaled.Pix)
	return out
}
