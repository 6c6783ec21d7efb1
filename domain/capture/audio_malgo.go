//go:build cgo && !noaudio

package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/soocke/camrec/domain/media"
)

const micPeriodMS = 20

// MicSource captures s16le PCM from the default input device.
type MicSource struct {
	format media.AudioFormat
	clock  *media.HostClock
	logger *slog.Logger

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	stopping atomic.Bool
}

// NewMicSource initializes the audio backend.
func NewMicSource(format media.AudioFormat, clock *media.HostClock, logger *slog.Logger) (*MicSource, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio format %+v", format)
	}
	if sz := malgo.SampleSizeInBytes(malgo.FormatS16); sz != 2 {
		return nil, fmt.Errorf("malgo s16 sample size is %d", sz)
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	if clock == nil {
		clock = media.NewHostClock()
	}
	return &MicSource{format: format, clock: clock, logger: logger, ctx: ctx}, nil
}

func (m *MicSource) Format() media.AudioFormat { return m.format }

func (m *MicSource) Start(sink FrameSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return errors.New("audio source closed")
	}
	if m.device != nil {
		return nil
	}
	bytesPerFrame := 2 * m.format.Channels
	onData := func(_, in []byte, frames uint32) {
		if len(in) == 0 {
			return
		}
		// The callback buffer is reused by the backend.
		pcm := make([]byte, int(frames)*bytesPerFrame)
		copy(pcm, in)
		span := time.Duration(frames) * time.Second / time.Duration(m.format.SampleRate)
		sink.DeliverFrame(media.FrameSample{
			Kind:  media.TrackAudio,
			PTS:   m.clock.At(time.Now().Add(-span)),
			PCM:   pcm,
			Audio: m.format,
		})
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = uint32(m.format.SampleRate)
	cfg.PeriodSizeInMilliseconds = micPeriodMS
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: malgo.DataProc(onData),
		Stop: func() {
			if m.stopping.Load() {
				return
			}
			sink.DeviceInterrupted(&InterruptionError{Source: "microphone", Err: errors.New("device stopped")})
		},
	})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}
	m.device = dev
	m.stopping.Store(false)
	if m.logger != nil {
		m.logger.Info("microphone started", "sample_rate", m.format.SampleRate, "channels", m.format.Channels)
	}
	return nil
}

func (m *MicSource) Stop() error {
	m.mu.Lock()
	dev := m.device
	m.device = nil
	m.mu.Unlock()
	if dev == nil {
		return nil
	}
	m.stopping.Store(true)
	err := dev.Stop()
	dev.Uninit()
	return err
}

func (m *MicSource) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil
	}
	err := m.ctx.Uninit()
	m.ctx.Free()
	m.ctx = nil
	return err
}

var _ AudioSource = (*MicSource)(nil)
