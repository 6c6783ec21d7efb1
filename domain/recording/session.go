// Package recording owns the one-shot write session of a recording: it opens
// the writer lazily on the first frame, corrects video timestamps, feeds the
// track inputs and reports lifecycle events.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/soocke/camrec/domain/clock"
	"github.com/soocke/camrec/domain/events"
	"github.com/soocke/camrec/domain/media"
)

// Config controls how recordings are created.
type Config struct {
	OutputDir              string
	FileType               media.FileType
	Audio                  bool
	AudioFormat            media.AudioFormat
	Width                  int
	Height                 int
	FrameRate              int
	DurationUpdateInterval time.Duration
	MinFreeBytes           uint64
	FinishTimeout          time.Duration
}

// Listener observes state transitions. It is called with the session lock
// held and must not call back into the session.
type Listener func(prev, next State)

// Session is the recording state machine. Start, Finish and Cancel are meant
// to be called from one serial context; Submit from another. All methods are
// safe for concurrent use.
type Session struct {
	cfg     Config
	factory WriterFactory
	events  events.Observer
	metrics *Metrics
	logger  *slog.Logger

	freeBytes func(dir string) (uint64, error)

	mu         sync.Mutex
	state      State
	writer     Writer
	target     media.Target
	video      TrackInput
	audio      TrackInput
	clock      *clock.Clock
	anchor     media.Timestamp
	frameCount uint64
	dropped    uint64
	elapsed    time.Duration
	reported   time.Duration
	listeners  []Listener

	flushes sync.WaitGroup
}

// NewSession returns an idle session. obs and metrics may be nil.
func NewSession(cfg Config, factory WriterFactory, obs events.Observer, metrics *Metrics, logger *slog.Logger) *Session {
	if obs == nil {
		obs = events.NopObserver{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DurationUpdateInterval <= 0 {
		cfg.DurationUpdateInterval = 100 * time.Millisecond
	}
	return &Session{
		cfg:       cfg,
		factory:   factory,
		events:    obs,
		metrics:   metrics,
		logger:    logger,
		freeBytes: media.FreeBytes,
		clock:     clock.New(cfg.FrameRate),
	}
}

// AddListener registers a state transition listener.
func (s *Session) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// setState requires s.mu.
func (s *Session) setState(next State) {
	prev := s.state
	if prev == next {
		return
	}
	if !ValidTransition(prev, next) {
		s.logger.Error("invalid session transition", "from", prev.String(), "to", next.String())
	}
	s.state = next
	s.metrics.state.Set(float64(next))
	s.logger.Debug("session transition", "from", prev.String(), "to", next.String())
	for _, l := range s.listeners {
		l(prev, next)
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Target returns the output of the active recording, if any.
func (s *Session) Target() media.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Elapsed returns the duration recorded so far.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// FrameCount returns the number of samples appended in this recording.
func (s *Session) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// Dropped returns the number of samples dropped in this recording.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Corrections returns how many video timestamps were corrected in this
// recording.
func (s *Session) Corrections() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Corrections()
}

// SetFrameRate changes the cadence used for timestamp correction.
func (s *Session) SetFrameRate(fps int) {
	s.mu.Lock()
	s.cfg.FrameRate = fps
	s.clock.SetFrameRate(fps)
	s.mu.Unlock()
}

// Start allocates a writer for a fresh target and declares its tracks. The
// write session itself is opened by the first submitted frame.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return &PreconditionError{Op: "start", State: s.state, Err: ErrAlreadyRecording}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkFreeSpace(); err != nil {
		return err
	}
	target, err := media.NewTarget(s.cfg.OutputDir, s.cfg.FileType, media.KindVideo)
	if err != nil {
		return &PreconditionError{Op: "start", State: s.state, Err: err}
	}
	w, err := s.factory.NewWriter(target)
	if err != nil {
		return &EncoderError{Op: "create", Target: target, Err: err}
	}
	video, audio, err := s.declareTracks(w)
	if err == nil {
		err = w.StartWriting()
	}
	if err != nil {
		s.discard(w, target)
		return &EncoderError{Op: "start", Target: target, Err: err}
	}

	s.writer, s.target, s.video, s.audio = w, target, video, audio
	s.resetCounters()
	s.clock.Reset()
	s.clock.SetFrameRate(s.cfg.FrameRate)
	s.setState(StateStarting)
	s.logger.Info("recording starting", "target", target.Path, "audio", audio != nil)
	s.events.OnWillBegin(target)
	return nil
}

func (s *Session) checkFreeSpace() error {
	if s.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := s.freeBytes(s.cfg.OutputDir)
	if err != nil {
		s.logger.Warn("free space check failed", "dir", s.cfg.OutputDir, "error", err)
		return nil
	}
	if free < s.cfg.MinFreeBytes {
		return fmt.Errorf("%w in %s: %d bytes free, %d required",
			ErrInsufficientSpace, s.cfg.OutputDir, free, s.cfg.MinFreeBytes)
	}
	return nil
}

func (s *Session) declareTracks(w Writer) (video, audio TrackInput, err error) {
	video, err = w.AddTrack(media.TrackVideo, TrackSettings{
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		FrameRate: s.cfg.FrameRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("add video track: %w", err)
	}
	if s.cfg.Audio {
		audio, err = w.AddTrack(media.TrackAudio, TrackSettings{Audio: s.cfg.AudioFormat})
		if err != nil {
			return nil, nil, fmt.Errorf("add audio track: %w", err)
		}
	}
	return video, audio, nil
}

// Submit feeds one captured sample to the active recording. It is a no-op
// unless the session is starting or writing. Failures never escape: they end
// up as a dropped-frame diagnostic or an OnFail event.
func (s *Session) Submit(sample media.FrameSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return
	}
	input := s.input(sample.Kind)
	if input == nil {
		return
	}
	if !sample.Ready() || !sample.PTS.Valid() {
		s.drop(sample.Kind, "not_ready")
		return
	}

	pts := sample.PTS
	if s.state == StateStarting {
		if err := s.writer.StartSession(pts); err != nil {
			s.fail("start session", err)
			return
		}
		s.anchor = pts
		s.setState(StateWriting)
		s.logger.Info("recording began", "target", s.target.Path, "anchor", pts.String())
		s.events.OnBegin(s.target)
	} else if pts.Before(s.anchor) {
		s.drop(sample.Kind, "before_anchor")
		return
	}

	// Video is corrected against the last appended video frame; a dropped
	// frame never becomes the reference.
	video := sample.Kind == media.TrackVideo
	var corrected bool
	if video {
		pts, corrected = s.clock.Peek(pts)
	}

	if !input.ReadyForMoreMediaData() {
		s.drop(sample.Kind, "backpressure")
		return
	}
	if err := input.Append(sample, pts); err != nil {
		s.fail("append "+sample.Kind.String(), err)
		return
	}
	if video {
		s.clock.Accept(pts, corrected)
		if corrected {
			s.metrics.corrections.Inc()
			s.logger.Debug("timestamp corrected", "raw", sample.PTS.String(), "corrected", pts.String())
		}
	}
	s.metrics.framesAppended.WithLabelValues(sample.Kind.String()).Inc()
	s.frameCount++

	if e := pts.Sub(s.anchor); e > s.elapsed {
		s.elapsed = e
	}
	if s.elapsed-s.reported >= s.cfg.DurationUpdateInterval {
		s.reported = s.elapsed
		s.events.OnDurationUpdate(s.elapsed)
	}
}

func (s *Session) input(kind media.TrackKind) TrackInput {
	switch kind {
	case media.TrackVideo:
		return s.video
	case media.TrackAudio:
		return s.audio
	}
	return nil
}

func (s *Session) drop(kind media.TrackKind, reason string) {
	s.dropped++
	s.metrics.framesDropped.WithLabelValues(kind.String(), reason).Inc()
	s.logger.Debug("frame dropped", "track", kind.String(), "reason", reason, "dropped", s.dropped)
}

// fail requires s.mu and an active session.
func (s *Session) fail(op string, err error) {
	target := s.target
	s.setState(StateFailed)
	s.discard(s.writer, target)
	s.release()
	s.setState(StateIdle)
	s.metrics.recordings.WithLabelValues("failed").Inc()
	encErr := &EncoderError{Op: op, Target: target, Err: err}
	s.logger.Error("recording failed", "error", encErr)
	s.events.OnFail(encErr)
}

// Finish marks the track inputs finished and flushes the writer in the
// background. The observer gets OnStop now and OnFinish or OnFail once the
// flush completes.
func (s *Session) Finish(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Active() {
		st := s.state
		s.mu.Unlock()
		return &PreconditionError{Op: "finish", State: st, Err: ErrNotRecording}
	}
	if s.video != nil {
		s.video.MarkFinished()
	}
	if s.audio != nil {
		s.audio.MarkFinished()
	}
	w, target, frames := s.writer, s.target, s.frameCount
	s.setState(StateFinishing)
	s.resetCounters()
	s.logger.Info("recording stopping", "target", target.Path, "frames", frames)
	s.events.OnStop(target)
	s.flushes.Add(1)
	s.mu.Unlock()

	fctx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if s.cfg.FinishTimeout > 0 {
		fctx, cancel = context.WithTimeout(fctx, s.cfg.FinishTimeout)
	}
	go func() {
		defer s.flushes.Done()
		defer cancel()
		begin := time.Now()
		err := w.Finish(fctx)
		s.metrics.flushSeconds.Observe(time.Since(begin).Seconds())

		s.mu.Lock()
		s.release()
		s.setState(StateIdle)
		s.mu.Unlock()

		if err != nil {
			if !errors.Is(err, ErrEmptySession) {
				s.discard(nil, target)
			}
			encErr := &EncoderError{Op: "finish", Target: target, Err: err}
			s.metrics.recordings.WithLabelValues("failed").Inc()
			s.logger.Error("recording failed", "error", encErr)
			s.events.OnFail(encErr)
			return
		}
		s.metrics.recordings.WithLabelValues("finished").Inc()
		s.logger.Info("recording finished", "target", target.Path)
		s.events.OnFinish(target)
	}()
	return nil
}

// Cancel discards the writer and deletes the partial target.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return &PreconditionError{Op: "cancel", State: s.state, Err: ErrNotRecording}
	}
	target := s.target
	s.setState(StateCancelling)
	s.discard(s.writer, target)
	s.release()
	s.resetCounters()
	s.setState(StateIdle)
	s.metrics.recordings.WithLabelValues("cancelled").Inc()
	s.logger.Info("recording cancelled", "target", target.Path)
	s.events.OnCancel(target)
	return nil
}

// WaitFlushed blocks until every background flush has completed.
func (s *Session) WaitFlushed(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.flushes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) discard(w Writer, target media.Target) {
	if w != nil {
		if err := w.Cancel(); err != nil {
			s.logger.Warn("writer cancel failed", "target", target.Path, "error", err)
		}
	}
	if target.Empty() {
		return
	}
	if err := os.Remove(target.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove partial target failed", "target", target.Path, "error", err)
	}
}

// release requires s.mu.
func (s *Session) release() {
	s.writer = nil
	s.video = nil
	s.audio = nil
	s.target = media.Target{}
	s.anchor = media.Timestamp{}
}

// resetCounters requires s.mu.
func (s *Session) resetCounters() {
	s.frameCount = 0
	s.dropped = 0
	s.elapsed = 0
	s.reported = 0
}
