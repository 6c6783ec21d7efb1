// Package ffmpeg implements the recording writer on top of an ffmpeg child
// process. Video is piped as raw RGBA on stdin, audio as s16le PCM on an
// extra pipe.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
)

// ErrEmptySession is returned by Finish when no sample was ever written.
// The target file is left in place.
var ErrEmptySession = recording.ErrEmptySession

var (
	errCancelled  = errors.New("writer cancelled")
	errWrongPhase = errors.New("writer used out of order")
)

const (
	// maxSilence bounds the silence inserted for one audio gap.
	maxSilence      = 5 * time.Second
	silenceTolerate = 0.05
)

// Options tune the encoder.
type Options struct {
	Binary       string
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string
	// QueueDepth is the number of samples buffered per track before the
	// track reports it is not ready.
	QueueDepth int
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = "ffmpeg"
	}
	if o.VideoCodec == "" {
		o.VideoCodec = "libx264"
	}
	if o.AudioCodec == "" {
		o.AudioCodec = "aac"
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = "128k"
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 8
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Factory creates ffmpeg writers.
type Factory struct {
	opts Options
}

func NewFactory(opts Options) *Factory { return &Factory{opts: opts.withDefaults()} }

func (f *Factory) NewWriter(target media.Target) (recording.Writer, error) {
	if _, err := Muxer(target.Type); err != nil {
		return nil, err
	}
	return newWriter(f.opts, target), nil
}

type phase int

const (
	phaseCreated phase = iota
	phaseWriting
	phaseDone
)

type packet struct {
	pts  media.Timestamp
	data []byte
}

// Writer drives one ffmpeg process.
type Writer struct {
	opts   Options
	target media.Target
	logger *slog.Logger

	mu            sync.Mutex
	phase         phase
	videoSettings *recording.TrackSettings
	audioSettings *recording.TrackSettings
	video         *trackInput
	audio         *trackInput
	origin        atomic.Pointer[media.Timestamp]

	cmd       *exec.Cmd
	stderr    *tailBuffer
	cancel    context.CancelFunc
	group     *errgroup.Group
	dead      chan struct{}
	err       atomic.Pointer[error]
	cancelled atomic.Bool

	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	pcmOut    atomic.Int64
}

func newWriter(opts Options, target media.Target) *Writer {
	return &Writer{
		opts:   opts,
		target: target,
		logger: opts.Logger.With("component", "ffmpeg", "target", target.Path),
		stderr: newTailBuffer(4096),
		dead:   make(chan struct{}),
	}
}

func (w *Writer) Target() media.Target { return w.target }

func (w *Writer) AddTrack(kind media.TrackKind, settings recording.TrackSettings) (recording.TrackInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != phaseCreated {
		return nil, fmt.Errorf("add %s track: %w", kind, errWrongPhase)
	}
	in := &trackInput{w: w, kind: kind, ch: make(chan packet, w.opts.QueueDepth)}
	s := settings
	switch kind {
	case media.TrackVideo:
		if w.video != nil {
			return nil, errors.New("video track already declared")
		}
		w.videoSettings, w.video = &s, in
	case media.TrackAudio:
		if w.audio != nil {
			return nil, errors.New("audio track already declared")
		}
		if s.Audio.SampleRate <= 0 || s.Audio.Channels <= 0 {
			return nil, fmt.Errorf("invalid audio format %+v", s.Audio)
		}
		w.audioSettings, w.audio = &s, in
	default:
		return nil, fmt.Errorf("unknown track kind %d", kind)
	}
	return in, nil
}

// StartWriting creates the target and launches ffmpeg.
func (w *Writer) StartWriting() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != phaseCreated || w.video == nil {
		return fmt.Errorf("start writing: %w", errWrongPhase)
	}
	args, err := buildArgs(w.opts, w.target, *w.videoSettings, w.audioSettings)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(w.target.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, w.opts.Binary, args...)
	cmd.Stderr = w.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	var audioR, audioW *os.File
	if w.audio != nil {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			cancel()
			return fmt.Errorf("audio pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{audioR}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		if audioR != nil {
			audioR.Close()
			audioW.Close()
		}
		return fmt.Errorf("start %s: %w", w.opts.Binary, err)
	}
	if audioR != nil {
		audioR.Close()
	}
	w.logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "args", args)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.pumpVideo(gctx, stdin) })
	if audioW != nil {
		g.Go(func() error { return w.pumpAudio(gctx, audioW) })
	}
	go func() {
		err := cmd.Wait()
		if err != nil && !w.cancelled.Load() {
			w.setErr(fmt.Errorf("ffmpeg exited: %w: %s", err, w.stderr.String()))
		}
		close(w.dead)
	}()

	w.cmd, w.cancel, w.group = cmd, cancel, g
	w.phase = phaseWriting
	return nil
}

// StartSession sets the time origin for both tracks.
func (w *Writer) StartSession(at media.Timestamp) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.phase != phaseWriting {
		return fmt.Errorf("start session: %w", errWrongPhase)
	}
	if w.origin.Load() != nil {
		return errors.New("session already started")
	}
	o := at
	w.origin.Store(&o)
	return nil
}

func (w *Writer) setErr(err error) {
	w.err.CompareAndSwap(nil, &err)
}

func (w *Writer) failure() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (w *Writer) pumpVideo(ctx context.Context, out io.WriteCloser) error {
	defer out.Close()
	settings := w.videoSettings
	maxRepeat := settings.FrameRate
	var next int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-w.video.ch:
			if !ok {
				return nil
			}
			origin := w.origin.Load()
			if origin == nil {
				continue
			}
			n := gridRepeats(p.pts, *origin, settings.FrameRate, next, maxRepeat)
			for i := 0; i < n; i++ {
				if _, err := out.Write(p.data); err != nil {
					w.setErr(fmt.Errorf("write video: %w", err))
					return err
				}
			}
			next += int64(n)
			w.framesOut.Add(uint64(n))
		}
	}
}

func (w *Writer) pumpAudio(ctx context.Context, out io.WriteCloser) error {
	defer out.Close()
	format := w.audioSettings.Audio
	maxPad := int64(maxSilence.Seconds()*float64(format.SampleRate)) * int64(2*format.Channels)
	var silence []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-w.audio.ch:
			if !ok {
				return nil
			}
			origin := w.origin.Load()
			if origin == nil {
				continue
			}
			pad := silenceBytes(p.pts, *origin, format, w.pcmOut.Load(), silenceTolerate)
			if pad > maxPad {
				pad = maxPad
			}
			if pad > 0 {
				if int64(len(silence)) < pad {
					silence = make([]byte, pad)
				}
				if _, err := out.Write(silence[:pad]); err != nil {
					w.setErr(fmt.Errorf("write audio: %w", err))
					return err
				}
				w.pcmOut.Add(pad)
			}
			if _, err := out.Write(p.data); err != nil {
				w.setErr(fmt.Errorf("write audio: %w", err))
				return err
			}
			w.pcmOut.Add(int64(len(p.data)))
		}
	}
}

// Finish closes both inputs and waits for ffmpeg to finalize the file.
func (w *Writer) Finish(ctx context.Context) error {
	w.mu.Lock()
	if w.phase != phaseWriting {
		w.mu.Unlock()
		return fmt.Errorf("finish: %w", errWrongPhase)
	}
	w.phase = phaseDone
	w.mu.Unlock()

	w.video.MarkFinished()
	if w.audio != nil {
		w.audio.MarkFinished()
	}
	done := make(chan error, 1)
	go func() {
		perr := w.group.Wait()
		<-w.dead
		if err := w.failure(); err != nil {
			done <- err
			return
		}
		done <- perr
	}()
	select {
	case err := <-done:
		w.cancel()
		w.logger.Info("ffmpeg finished",
			"frames_in", w.framesIn.Load(),
			"frames_out", w.framesOut.Load(),
			"pcm_bytes", w.pcmOut.Load())
		if w.origin.Load() == nil {
			return ErrEmptySession
		}
		return err
	case <-ctx.Done():
		w.cancelled.Store(true)
		w.cancel()
		return fmt.Errorf("finish: %w", ctx.Err())
	}
}

// Cancel kills ffmpeg and removes the partial file.
func (w *Writer) Cancel() error {
	w.mu.Lock()
	started := w.phase == phaseWriting
	w.phase = phaseDone
	w.mu.Unlock()
	if !started {
		return nil
	}
	w.cancelled.Store(true)
	w.setErr(errCancelled)
	w.cancel()
	w.video.MarkFinished()
	if w.audio != nil {
		w.audio.MarkFinished()
	}
	_ = w.group.Wait()
	<-w.dead
	if err := os.Remove(w.target.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// trackInput buffers samples for one pump.
type trackInput struct {
	w    *Writer
	kind media.TrackKind
	ch   chan packet

	once     sync.Once
	mu       sync.RWMutex
	finished bool
}

func (in *trackInput) Kind() media.TrackKind { return in.kind }

func (in *trackInput) ReadyForMoreMediaData() bool {
	if in.w.failure() != nil {
		// Let the next Append report the failure.
		return true
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return !in.finished && len(in.ch) < cap(in.ch)
}

func (in *trackInput) Append(sample media.FrameSample, pts media.Timestamp) error {
	if err := in.w.failure(); err != nil {
		return err
	}
	var data []byte
	switch in.kind {
	case media.TrackVideo:
		s := in.w.videoSettings
		data = rgbaBytes(sample.Image, s.Width, s.Height)
		in.w.framesIn.Add(1)
	case media.TrackAudio:
		data = append([]byte(nil), sample.PCM...)
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.finished {
		return fmt.Errorf("append %s: track finished", in.kind)
	}
	select {
	case in.ch <- packet{pts: pts, data: data}:
		return nil
	case <-in.w.dead:
		if err := in.w.failure(); err != nil {
			return err
		}
		return errors.New("ffmpeg exited")
	}
}

func (in *trackInput) MarkFinished() {
	in.once.Do(func() {
		in.mu.Lock()
		in.finished = true
		close(in.ch)
		in.mu.Unlock()
	})
}

// rgbaBytes returns a tightly packed w x h RGBA copy of img.
func rgbaBytes(img *image.RGBA, w, h int) []byte {
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return imaging.Fill(img, w, h, imaging.Center, imaging.Linear).Pix
	}
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], img.Pix[off:off+w*4])
	}
	return out
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

var _ recording.Writer = (*Writer)(nil)
