package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soocke/camrec/domain/media"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// recorder records event names in delivery order.
type recorder struct {
	NopObserver
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(n string) {
	r.mu.Lock()
	r.names = append(r.names, n)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func (r *recorder) OnBegin(media.Target)           { r.add("begin") }
func (r *recorder) OnFinish(media.Target)          { r.add("finish") }
func (r *recorder) OnFail(error)                   { r.add("fail") }
func (r *recorder) OnDurationUpdate(time.Duration) { r.add("duration") }

func TestDispatcher_DeliversOnlyOnDrain(t *testing.T) {
	loop := NewMainLoop(discardLogger)
	rec := &recorder{}
	d := NewDispatcher(loop, rec, discardLogger)
	d.OnBegin(media.Target{Path: "a.mov"})
	d.OnDurationUpdate(time.Second)
	d.OnFinish(media.Target{Path: "a.mov"})
	d.OnCameraSwitch(media.PositionFront)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("events delivered before drain: %v", got)
	}
	if n := loop.Drain(); n != 4 {
		t.Fatalf("expected 4 drained, got %d", n)
	}
	got := rec.snapshot()
	want := []string{"begin", "duration", "finish"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestDispatcher_NilObserverIsNop(t *testing.T) {
	loop := NewMainLoop(discardLogger)
	d := NewDispatcher(loop, nil, discardLogger)
	d.OnFail(errors.New("x"))
	d.OnInterrupt(errors.New("y"))
	loop.Drain()
}

func TestMainLoop_RunDeliversFromProducers(t *testing.T) {
	loop := NewMainLoop(discardLogger)
	rec := &recorder{}
	d := NewDispatcher(loop, rec, discardLogger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.OnDurationUpdate(time.Millisecond)
		}()
	}
	wg.Wait()
	deadline := time.Now().Add(time.Second)
	for len(rec.snapshot()) < 8 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	<-done
	if n := len(rec.snapshot()); n != 8 {
		t.Fatalf("expected 8 events, got %d", n)
	}
}

type panicky struct{ NopObserver }

func (panicky) OnBegin(media.Target) { panic("observer bug") }

func TestMainLoop_RecoversObserverPanic(t *testing.T) {
	loop := NewMainLoop(discardLogger)
	d := NewDispatcher(loop, panicky{}, discardLogger)
	rec := &recorder{}
	d.OnBegin(media.Target{})
	loop.Post(func() { rec.add("after") })
	loop.Drain()
	if got := rec.snapshot(); len(got) != 1 || got[0] != "after" {
		t.Fatalf("loop did not continue after panic: %v", got)
	}
}
