package recording

import (
	"context"
	"errors"
	"image"
	"os"
	"sync"

	"github.com/soocke/camrec/domain/media"
)

// fakeWriter creates its target on StartWriting and records appends.
type fakeWriter struct {
	target        media.Target
	tolerateEmpty bool

	mu         sync.Mutex
	tracks     map[media.TrackKind]*fakeInput
	started    bool
	sessionAt  *media.Timestamp
	finished   bool
	cancelled  bool
	finishErr  error
	finishGate chan struct{}
}

func (w *fakeWriter) Target() media.Target { return w.target }

func (w *fakeWriter) AddTrack(kind media.TrackKind, _ TrackSettings) (TrackInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tracks == nil {
		w.tracks = map[media.TrackKind]*fakeInput{}
	}
	in := &fakeInput{kind: kind, ready: true}
	w.tracks[kind] = in
	return in, nil
}

func (w *fakeWriter) StartWriting() error {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	return os.WriteFile(w.target.Path, nil, 0o644)
}

func (w *fakeWriter) StartSession(at media.Timestamp) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sessionAt != nil {
		return errors.New("session already started")
	}
	w.sessionAt = &at
	return nil
}

func (w *fakeWriter) Finish(ctx context.Context) error {
	if w.finishGate != nil {
		select {
		case <-w.finishGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finished = true
	if w.finishErr != nil {
		return w.finishErr
	}
	if w.sessionAt == nil && !w.tolerateEmpty {
		return ErrEmptySession
	}
	return nil
}

func (w *fakeWriter) Cancel() error {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) input(kind media.TrackKind) *fakeInput {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracks[kind]
}

type fakeInput struct {
	kind media.TrackKind

	mu        sync.Mutex
	ready     bool
	appendErr error
	pts       []media.Timestamp
	finished  bool
}

func (in *fakeInput) Kind() media.TrackKind { return in.kind }

func (in *fakeInput) ReadyForMoreMediaData() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.ready && !in.finished
}

func (in *fakeInput) Append(_ media.FrameSample, pts media.Timestamp) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.appendErr != nil {
		return in.appendErr
	}
	in.pts = append(in.pts, pts)
	return nil
}

func (in *fakeInput) MarkFinished() {
	in.mu.Lock()
	in.finished = true
	in.mu.Unlock()
}

func (in *fakeInput) setReady(v bool) {
	in.mu.Lock()
	in.ready = v
	in.mu.Unlock()
}

func (in *fakeInput) appended() []media.Timestamp {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]media.Timestamp(nil), in.pts...)
}

// fakeFactory hands out fakeWriters and remembers the last one.
type fakeFactory struct {
	tolerateEmpty bool

	mu   sync.Mutex
	last *fakeWriter
	all  []*fakeWriter
}

func (f *fakeFactory) NewWriter(target media.Target) (Writer, error) {
	w := &fakeWriter{target: target, tolerateEmpty: f.tolerateEmpty}
	f.mu.Lock()
	f.last = w
	f.all = append(f.all, w)
	f.mu.Unlock()
	return w, nil
}

func (f *fakeFactory) writer() *fakeWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func videoAt(value int64, timescale int32) media.FrameSample {
	return media.FrameSample{
		Kind:  media.TrackVideo,
		PTS:   media.Timestamp{Value: value, Timescale: timescale},
		Image: image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}
}

func audioAt(value int64, timescale int32) media.FrameSample {
	return media.FrameSample{
		Kind:  media.TrackAudio,
		PTS:   media.Timestamp{Value: value, Timescale: timescale},
		PCM:   make([]byte, 64),
		Audio: media.AudioFormat{SampleRate: 48000, Channels: 1},
	}
}
