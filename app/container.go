package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soocke/camrec/config"
	"github.com/soocke/camrec/domain/capture"
	"github.com/soocke/camrec/domain/events"
	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
	"github.com/soocke/camrec/encoder/ffmpeg"
	"github.com/soocke/camrec/ui/model"
	"github.com/soocke/camrec/ui/presenter"
	"github.com/soocke/camrec/ui/view"
)

// Devices are the collaborators the container wires around the core.
type Devices struct {
	Provider capture.DeviceProvider
	Audio    capture.AudioSource // nil disables audio
	Writers  recording.WriterFactory
	// Registerer receives all collectors; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// DefaultDevices opens the screen provider, the microphone when audio is
// enabled and the ffmpeg writer factory. A microphone that cannot be opened
// disables audio instead of failing.
func DefaultDevices(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) Devices {
	clock := media.NewHostClock()
	d := Devices{
		Provider: capture.NewScreenProvider(cfg.FrontRegion(), clock, logger.With("component", "screen")),
		Writers: ffmpeg.NewFactory(ffmpeg.Options{
			Binary:       cfg.FFmpegPath,
			VideoCodec:   cfg.VideoCodec,
			Preset:       cfg.Preset,
			CRF:          cfg.CRF,
			AudioCodec:   cfg.AudioCodec,
			AudioBitrate: cfg.AudioBitrate,
			QueueDepth:   cfg.WriterQueueDepth,
			Logger:       logger.With("component", "ffmpeg"),
		}),
		Registerer: reg,
	}
	if cfg.AudioEnabled {
		mic, err := capture.NewMicSource(cfg.AudioFormat(), clock, logger.With("component", "mic"))
		switch {
		case errors.Is(err, capture.ErrAudioUnavailable):
			logger.Warn("audio disabled in this build")
		case err != nil:
			logger.Warn("microphone unavailable, recording without audio", "error", err)
		default:
			d.Audio = mic
		}
	}
	return d
}

// AppContainer assembles models, services, presenters and the root view.
type AppContainer struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *slog.Logger
	MainLoop    *events.MainLoop
	Dispatcher  *events.Dispatcher
	Session     *recording.Session
	Coordinator *capture.Coordinator

	Status       *model.StatusModel
	SessionModel *model.SessionModel
	RootView     *view.RootView

	// Presenters
	RecordingPresenter *presenter.RecordingPresenter
	SessionPresenter   *presenter.SessionPresenter
	ControlsPresenter  *presenter.ControlsPresenter
}

// BuildContainer constructs all components. No device is opened and no Tk
// widget is created; the root view is built by the app.
func BuildContainer(cfg *config.Config, cfgPath string, dev Devices, logger *slog.Logger) (*AppContainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	videoType, err := cfg.VideoType()
	if err != nil {
		return nil, err
	}
	imageType, err := cfg.ImageType()
	if err != nil {
		return nil, err
	}

	c := &AppContainer{Config: cfg, ConfigPath: cfgPath, Logger: logger}
	c.MainLoop = events.NewMainLoop(logger.With("component", "events"))
	c.Status = &model.StatusModel{}
	c.Status.SetPosition(cfg.StartPosition().String())
	c.Status.SetZoom(1)
	c.SessionModel = model.NewSessionModel()
	c.RootView = view.NewRootView(cfg, cfgPath, logger)

	c.RecordingPresenter = presenter.NewRecordingPresenter(c.Status, c.RootView, logger)
	c.Dispatcher = events.NewDispatcher(c.MainLoop, c.RecordingPresenter, logger.With("component", "events"))

	audio := dev.Audio != nil
	var format media.AudioFormat
	if audio {
		format = dev.Audio.Format()
	}
	c.Session = recording.NewSession(recording.Config{
		OutputDir:              cfg.OutputDir,
		FileType:               videoType,
		Audio:                  audio,
		AudioFormat:            format,
		Width:                  cfg.Width,
		Height:                 cfg.Height,
		FrameRate:              cfg.FrameRate,
		DurationUpdateInterval: cfg.DurationUpdateInterval(),
		MinFreeBytes:           cfg.MinFreeBytes(),
		FinishTimeout:          cfg.FinishTimeout(),
	}, dev.Writers, c.Dispatcher, recording.NewMetrics(dev.Registerer), logger.With("component", "session"))
	c.Session.AddListener(c.RecordingPresenter.OnStateChange)

	c.Coordinator = capture.NewCoordinator(capture.Options{
		Position:          cfg.StartPosition(),
		FrameRate:         cfg.FrameRate,
		PressureFrameRate: cfg.PressureFrameRate,
		Width:             cfg.Width,
		Height:            cfg.Height,
		Audio:             audio,
		ConfigQueueDepth:  cfg.ConfigQueueDepth,
		FrameQueueDepth:   cfg.FrameQueueDepth,
		Still: capture.StillWriter{
			Dir:     cfg.OutputDir,
			Type:    imageType,
			Height:  cfg.StillHeight,
			Quality: cfg.JPEGQuality,
		},
	}, dev.Provider, dev.Audio, c.Session, c.Dispatcher, capture.NewMetrics(dev.Registerer), logger.With("component", "capture"))

	c.SessionPresenter = presenter.NewSessionPresenter(c.SessionModel, c.RecordingPresenter, c.RootView)
	c.ControlsPresenter = presenter.NewControlsPresenter(c.Coordinator, c.RecordingPresenter, c.Status, logger)
	return c, nil
}
