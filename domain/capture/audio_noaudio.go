//go:build !cgo || noaudio

package capture

import (
	"log/slog"

	"github.com/soocke/camrec/domain/media"
)

// MicSource is a placeholder in cgo-less and noaudio builds.
type MicSource struct{}

// NewMicSource always fails in this build.
func NewMicSource(media.AudioFormat, *media.HostClock, *slog.Logger) (*MicSource, error) {
	return nil, ErrAudioUnavailable
}

func (*MicSource) Format() media.AudioFormat { return media.AudioFormat{} }
func (*MicSource) Start(FrameSink) error     { return ErrAudioUnavailable }
func (*MicSource) Stop() error               { return nil }
func (*MicSource) Close() error              { return nil }

var _ AudioSource = (*MicSource)(nil)
