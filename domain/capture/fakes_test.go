package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/camrec/domain/events"
	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeDevice is a synthetic video device driven by the test.
type fakeDevice struct {
	pos      media.Position
	caps     Capabilities
	applyErr error
	startErr error

	mu      sync.Mutex
	applied []DeviceConfiguration
	sink    FrameSink
	started bool
	stopped int
}

func (d *fakeDevice) Position() media.Position   { return d.pos }
func (d *fakeDevice) Capabilities() Capabilities { return d.caps }

func (d *fakeDevice) Apply(cfg DeviceConfiguration) error {
	if d.applyErr != nil {
		return d.applyErr
	}
	if cfg.Torch && !d.caps.Torch {
		return ErrUnsupported
	}
	d.mu.Lock()
	d.applied = append(d.applied, cfg)
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Start(sink FrameSink) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.sink = sink
	d.started = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	d.started = false
	d.stopped++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) last() DeviceConfiguration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied[len(d.applied)-1]
}

func (d *fakeDevice) isStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func (d *fakeDevice) emitVideo(pts media.Timestamp) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	img := acquireFrame(8, 6)
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	sink.DeliverFrame(media.FrameSample{Kind: media.TrackVideo, PTS: pts, Image: img})
}

var testCaps = Capabilities{
	MinFrameRate: 15,
	MaxFrameRate: 30,
	MinZoom:      1,
	MaxZoom:      4,
	Focus:        true,
	Bounds:       image.Rect(0, 0, 8, 6),
}

// fakeProvider hands out a new fakeDevice per open.
type fakeProvider struct {
	mu        sync.Mutex
	opened    []*fakeDevice
	failNext  error
	startFail error
}

func (p *fakeProvider) OpenVideo(pos media.Position) (VideoDevice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := &fakeDevice{pos: pos, caps: testCaps, applyErr: p.failNext, startErr: p.startFail}
	p.failNext = nil
	p.startFail = nil
	p.opened = append(p.opened, d)
	return d, nil
}

func (p *fakeProvider) current() *fakeDevice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened[len(p.opened)-1]
}

func (p *fakeProvider) device(i int) *fakeDevice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened[i]
}

// memWriter is an in-memory recording.Writer.
type memWriter struct {
	target media.Target
	mu     sync.Mutex
	frames int
	opened bool
}

func (w *memWriter) Target() media.Target { return w.target }
func (w *memWriter) AddTrack(kind media.TrackKind, _ recording.TrackSettings) (recording.TrackInput, error) {
	return &memInput{w: w, kind: kind}, nil
}
func (w *memWriter) StartWriting() error { return nil }
func (w *memWriter) StartSession(media.Timestamp) error {
	w.mu.Lock()
	w.opened = true
	w.mu.Unlock()
	return nil
}
func (w *memWriter) Finish(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.opened {
		return errors.New("empty")
	}
	return nil
}
func (w *memWriter) Cancel() error { return nil }

type memInput struct {
	w    *memWriter
	kind media.TrackKind
}

func (in *memInput) Kind() media.TrackKind       { return in.kind }
func (in *memInput) ReadyForMoreMediaData() bool { return true }
func (in *memInput) MarkFinished()               {}
func (in *memInput) Append(media.FrameSample, media.Timestamp) error {
	in.w.mu.Lock()
	in.w.frames++
	in.w.mu.Unlock()
	return nil
}

// observed records coordinator events.
type observed struct {
	events.NopObserver
	mu       sync.Mutex
	switches []media.Position
	zooms    []float64
	focus    []media.Point
	stills   []media.Target
	fails    []error
	intr     []error
	willSnap int
}

func (o *observed) OnCameraSwitch(p media.Position) {
	o.mu.Lock()
	o.switches = append(o.switches, p)
	o.mu.Unlock()
}
func (o *observed) OnZoomChange(z float64) {
	o.mu.Lock()
	o.zooms = append(o.zooms, z)
	o.mu.Unlock()
}
func (o *observed) OnFocus(p media.Point) {
	o.mu.Lock()
	o.focus = append(o.focus, p)
	o.mu.Unlock()
}
func (o *observed) OnCaptureImage(t media.Target) {
	o.mu.Lock()
	o.stills = append(o.stills, t)
	o.mu.Unlock()
}
func (o *observed) OnFail(err error) {
	o.mu.Lock()
	o.fails = append(o.fails, err)
	o.mu.Unlock()
}
func (o *observed) OnInterrupt(err error) {
	o.mu.Lock()
	o.intr = append(o.intr, err)
	o.mu.Unlock()
}
func (o *observed) OnWillCaptureImage() {
	o.mu.Lock()
	o.willSnap++
	o.mu.Unlock()
}

func (o *observed) stillCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.stills)
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
