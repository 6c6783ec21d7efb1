package recording

import (
	"context"

	"github.com/soocke/camrec/domain/media"
)

// TrackSettings describes a track declared on a Writer.
type TrackSettings struct {
	Width     int
	Height    int
	FrameRate int
	Audio     media.AudioFormat
}

// TrackInput is a per-kind channel into the writer.
type TrackInput interface {
	Kind() media.TrackKind
	// ReadyForMoreMediaData reports whether Append would be accepted now
	// without blocking.
	ReadyForMoreMediaData() bool
	// Append writes the sample at pts. The sample is not retained.
	Append(sample media.FrameSample, pts media.Timestamp) error
	MarkFinished()
}

// Writer serializes one recording to its target. A writer is used for
// exactly one recording: tracks are added, writing starts, a session is
// opened at the first timestamp, then either Finish or Cancel is called once.
type Writer interface {
	Target() media.Target
	AddTrack(kind media.TrackKind, settings TrackSettings) (TrackInput, error)
	StartWriting() error
	StartSession(at media.Timestamp) error
	// Finish flushes pending samples and finalizes the container.
	Finish(ctx context.Context) error
	// Cancel aborts without finalizing.
	Cancel() error
}

// WriterFactory allocates a writer for a fresh target.
type WriterFactory interface {
	NewWriter(target media.Target) (Writer, error)
}

// WriterFactoryFunc adapts a function to WriterFactory.
type WriterFactoryFunc func(target media.Target) (Writer, error)

func (f WriterFactoryFunc) NewWriter(target media.Target) (Writer, error) { return f(target) }
