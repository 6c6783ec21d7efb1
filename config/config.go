package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/soocke/camrec/domain/media"
)

// Config holds runtime configuration for capture, recording and app
// behavior. Fields may be loaded from a JSON file and overridden by
// command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Output
	OutputDir     string `json:"output_dir"`
	VideoFileType string `json:"video_file_type"`
	ImageFileType string `json:"image_file_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	StillHeight   int    `json:"still_height"`
	JPEGQuality   int    `json:"jpeg_quality"`
	MinFreeMB     int    `json:"min_free_mb"`

	// Capture
	Position          string `json:"position"`
	FrameRate         int    `json:"frame_rate"`
	PressureFrameRate int    `json:"pressure_frame_rate"`
	// Front camera region; zero size means the whole screen.
	FrontX int `json:"front_x"`
	FrontY int `json:"front_y"`
	FrontW int `json:"front_w"`
	FrontH int `json:"front_h"`

	AudioEnabled    bool `json:"audio_enabled"`
	AudioSampleRate int  `json:"audio_sample_rate"`
	AudioChannels   int  `json:"audio_channels"`

	// Session
	DurationUpdateMS int `json:"duration_update_ms"`
	FinishTimeoutSec int `json:"finish_timeout_sec"`
	ConfigQueueDepth int `json:"config_queue_depth"`
	FrameQueueDepth  int `json:"frame_queue_depth"`
	WriterQueueDepth int `json:"writer_queue_depth"`

	// Encoder
	FFmpegPath   string `json:"ffmpeg_path"`
	VideoCodec   string `json:"video_codec"`
	Preset       string `json:"preset"`
	CRF          int    `json:"crf"`
	AudioCodec   string `json:"audio_codec"`
	AudioBitrate string `json:"audio_bitrate"`

	// Diagnostics
	LogFile       string `json:"log_file"`
	MaxLogFiles   int    `json:"max_log_files"`
	MetricsListen string `json:"metrics_listen"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:         defaultOutputDir(),
		VideoFileType:     "mov",
		ImageFileType:     "jpg",
		Width:             1280,
		Height:            720,
		StillHeight:       1080,
		JPEGQuality:       90,
		MinFreeMB:         200,
		Position:          "back",
		FrameRate:         30,
		PressureFrameRate: 20,
		AudioEnabled:      false,
		AudioSampleRate:   48000,
		AudioChannels:     1,
		DurationUpdateMS:  100,
		FinishTimeoutSec:  60,
		ConfigQueueDepth:  16,
		FrameQueueDepth:   8,
		WriterQueueDepth:  8,
		FFmpegPath:        "ffmpeg",
		VideoCodec:        "libx264",
		Preset:            "veryfast",
		CRF:               23,
		AudioCodec:        "aac",
		AudioBitrate:      "128k",
		MaxLogFiles:       5,
	}
}

func defaultOutputDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Videos", "camrec")
	}
	return "camrec"
}

// Validate clamps/normalizes values to safe ranges. It returns an error for
// values that cannot be repaired, such as file types outside the allow-list.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir()
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 1280, 720
	}
	// yuv420p needs even dimensions.
	c.Width &^= 1
	c.Height &^= 1
	if c.FrameRate <= 0 || c.FrameRate > 60 {
		c.FrameRate = 30
	}
	if c.PressureFrameRate <= 0 || c.PressureFrameRate > c.FrameRate {
		c.PressureFrameRate = min(20, c.FrameRate)
	}
	if c.StillHeight < 0 {
		c.StillHeight = 0
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 90
	}
	if c.MinFreeMB < 0 {
		c.MinFreeMB = 0
	}
	if c.AudioSampleRate <= 0 {
		c.AudioSampleRate = 48000
	}
	if c.AudioChannels <= 0 || c.AudioChannels > 2 {
		c.AudioChannels = 1
	}
	if c.DurationUpdateMS <= 0 {
		c.DurationUpdateMS = 100
	}
	if c.FinishTimeoutSec <= 0 {
		c.FinishTimeoutSec = 60
	}
	if c.ConfigQueueDepth <= 0 {
		c.ConfigQueueDepth = 16
	}
	if c.FrameQueueDepth <= 0 {
		c.FrameQueueDepth = 8
	}
	if c.WriterQueueDepth <= 0 {
		c.WriterQueueDepth = 8
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.MaxLogFiles <= 0 {
		c.MaxLogFiles = 5
	}
	if c.FrontW < 0 || c.FrontH < 0 {
		c.FrontW, c.FrontH = 0, 0
	}

	if _, err := media.ParsePosition(c.Position); err != nil {
		return err
	}
	if _, err := c.VideoType(); err != nil {
		return err
	}
	it, err := c.ImageType()
	if err != nil {
		return err
	}
	if it == media.FileTypeHEIC {
		return fmt.Errorf("image file type %q has no encoder in this build", c.ImageFileType)
	}
	return nil
}

// VideoType resolves VideoFileType against the video allow-list.
func (c *Config) VideoType() (media.FileType, error) {
	return media.LookupFileType(c.VideoFileType, media.KindVideo)
}

// ImageType resolves ImageFileType against the image allow-list.
func (c *Config) ImageType() (media.FileType, error) {
	return media.LookupFileType(c.ImageFileType, media.KindImage)
}

// StartPosition returns the configured initial camera position.
func (c *Config) StartPosition() media.Position {
	p, _ := media.ParsePosition(c.Position)
	return p
}

// FrontRegion returns the screen region captured by the front position.
func (c *Config) FrontRegion() image.Rectangle {
	if c.FrontW <= 0 || c.FrontH <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(c.FrontX, c.FrontY, c.FrontX+c.FrontW, c.FrontY+c.FrontH)
}

func (c *Config) DurationUpdateInterval() time.Duration {
	return time.Duration(c.DurationUpdateMS) * time.Millisecond
}

func (c *Config) FinishTimeout() time.Duration {
	return time.Duration(c.FinishTimeoutSec) * time.Second
}

func (c *Config) MinFreeBytes() uint64 {
	return uint64(c.MinFreeMB) << 20
}

// AudioFormat returns the microphone PCM format.
func (c *Config) AudioFormat() media.AudioFormat {
	return media.AudioFormat{SampleRate: c.AudioSampleRate, Channels: c.AudioChannels}
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
