package app

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soocke/camrec/config"
	"github.com/soocke/camrec/domain/capture"
	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// tickerDevice emits a small frame every few milliseconds while started.
type tickerDevice struct {
	pos   media.Position
	clock *media.HostClock

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (d *tickerDevice) Position() media.Position { return d.pos }
func (d *tickerDevice) Capabilities() capture.Capabilities {
	return capture.Capabilities{MinFrameRate: 1, MaxFrameRate: 60, MinZoom: 1, MaxZoom: 4, Bounds: image.Rect(0, 0, 8, 6)}
}
func (d *tickerDevice) Apply(capture.DeviceConfiguration) error { return nil }

func (d *tickerDevice) Start(sink capture.FrameSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.stop, d.done = make(chan struct{}), make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		t := time.NewTicker(5 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				img := image.NewRGBA(image.Rect(0, 0, 8, 6))
				sink.DeliverFrame(media.FrameSample{Kind: media.TrackVideo, PTS: d.clock.Now(), Image: img})
			}
		}
	}(d.stop, d.done)
	return nil
}

func (d *tickerDevice) Stop() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

type tickerProvider struct{ clock *media.HostClock }

func (p tickerProvider) OpenVideo(pos media.Position) (capture.VideoDevice, error) {
	return &tickerDevice{pos: pos, clock: p.clock}, nil
}

// fileWriter counts appended frames and writes a placeholder on Finish.
type fileWriter struct {
	target    media.Target
	frames    *atomic.Int64
	finishErr error
}

func (w *fileWriter) Target() media.Target { return w.target }
func (w *fileWriter) AddTrack(kind media.TrackKind, _ recording.TrackSettings) (recording.TrackInput, error) {
	return &countingInput{kind: kind, frames: w.frames}, nil
}
func (w *fileWriter) StartWriting() error                { return nil }
func (w *fileWriter) StartSession(media.Timestamp) error { return nil }
func (w *fileWriter) Finish(context.Context) error {
	if w.finishErr != nil {
		return w.finishErr
	}
	return os.WriteFile(w.target.Path, []byte("movie"), 0o644)
}
func (w *fileWriter) Cancel() error { return nil }

type countingInput struct {
	kind   media.TrackKind
	frames *atomic.Int64
}

func (in *countingInput) Kind() media.TrackKind       { return in.kind }
func (in *countingInput) ReadyForMoreMediaData() bool { return true }
func (in *countingInput) Append(media.FrameSample, media.Timestamp) error {
	in.frames.Add(1)
	return nil
}
func (in *countingInput) MarkFinished() {}

func testContainer(t *testing.T, finishErr error) (*AppContainer, *atomic.Int64, *prometheus.Registry) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Width, cfg.Height = 8, 6
	cfg.MinFreeMB = 0
	cfg.StillHeight = 0
	cfg.FinishTimeoutSec = 2
	frames := &atomic.Int64{}
	reg := prometheus.NewRegistry()
	dev := Devices{
		Provider: tickerProvider{clock: media.NewHostClock()},
		Writers: recording.WriterFactoryFunc(func(target media.Target) (recording.Writer, error) {
			return &fileWriter{target: target, frames: frames, finishErr: finishErr}, nil
		}),
		Registerer: reg,
	}
	c, err := BuildContainer(cfg, "", dev, discardLogger)
	if err != nil {
		t.Fatalf("build container: %v", err)
	}
	return c, frames, reg
}

func TestRunHeadless_RecordsFile(t *testing.T) {
	c, frames, reg := testContainer(t, nil)
	target, err := RunHeadless(context.Background(), c, HeadlessOptions{Duration: 150 * time.Millisecond, Photo: true})
	if err != nil {
		t.Fatalf("headless: %v", err)
	}
	if !strings.HasSuffix(target.Path, ".mov") {
		t.Fatalf("unexpected target %q", target.Path)
	}
	if _, err := os.Stat(target.Path); err != nil {
		t.Fatalf("target missing: %v", err)
	}
	if frames.Load() == 0 {
		t.Fatalf("no frames appended")
	}
	if st := c.Session.State(); st != recording.StateIdle {
		t.Fatalf("session state = %v", st)
	}
	if c.Coordinator.Stats().Stills != 1 {
		t.Fatalf("photo not captured: %+v", c.Coordinator.Stats())
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "camrec_recordings_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("recording metrics not registered")
	}
}

func TestRunHeadless_ContextEndsRecording(t *testing.T) {
	c, _, _ := testContainer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	target, err := RunHeadless(ctx, c, HeadlessOptions{})
	if err != nil {
		t.Fatalf("headless: %v", err)
	}
	if _, err := os.Stat(target.Path); err != nil {
		t.Fatalf("target missing after interrupt: %v", err)
	}
}

func TestRunHeadless_EncoderFailure(t *testing.T) {
	boom := errors.New("muxer exploded")
	c, _, _ := testContainer(t, boom)
	_, err := RunHeadless(context.Background(), c, HeadlessOptions{Duration: 50 * time.Millisecond})
	var ee *recording.EncoderError
	if !errors.As(err, &ee) || !errors.Is(err, boom) {
		t.Fatalf("expected encoder error wrapping boom, got %v", err)
	}
}

func TestBuildContainer_RejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VideoFileType = "avi"
	if _, err := BuildContainer(cfg, "", Devices{}, discardLogger); err == nil {
		t.Fatalf("expected error for unsupported video type")
	}
}

type fakePressureTarget struct {
	stats   capture.Stats
	applied []capture.PressureLevel
}

func (f *fakePressureTarget) Stats() capture.Stats { return f.stats }
func (f *fakePressureTarget) ApplyPressure(_ context.Context, l capture.PressureLevel) error {
	f.applied = append(f.applied, l)
	return nil
}

func TestPressureMonitor_LevelChanges(t *testing.T) {
	target := &fakePressureTarget{}
	m := NewPressureMonitor(target, time.Second, discardLogger)
	ctx := context.Background()

	target.stats = capture.Stats{Delivered: 100}
	if l := m.Sample(ctx); l != capture.PressureNominal {
		t.Fatalf("level = %v", l)
	}
	if len(target.applied) != 0 {
		t.Fatalf("unchanged level applied: %v", target.applied)
	}

	// 100 delivered, 60 skipped since the last sample.
	target.stats = capture.Stats{Delivered: 200, Skipped: 60}
	if l := m.Sample(ctx); l != capture.PressureSerious {
		t.Fatalf("level = %v, want serious", l)
	}
	target.stats = capture.Stats{Delivered: 210, Skipped: 80}
	if l := m.Sample(ctx); l != capture.PressureCritical {
		t.Fatalf("level = %v, want critical", l)
	}
	target.stats = capture.Stats{Delivered: 400, Skipped: 80}
	if l := m.Sample(ctx); l != capture.PressureNominal {
		t.Fatalf("level = %v, want nominal", l)
	}
	want := []capture.PressureLevel{capture.PressureSerious, capture.PressureCritical, capture.PressureNominal}
	if len(target.applied) != len(want) {
		t.Fatalf("applied = %v", target.applied)
	}
	for i := range want {
		if target.applied[i] != want[i] {
			t.Fatalf("applied = %v, want %v", target.applied, want)
		}
	}
}
