package config

import (
	"errors"
	"time"

	flags "github.com/jessevdk/go-flags"
)

// Flags are the command-line options. Zero values leave the loaded
// configuration untouched.
type Flags struct {
	ConfigFile string        `short:"c" long:"config" description:"Path to the JSON configuration file" default:"camrec.json"`
	SaveConfig bool          `long:"save-config" description:"Write the effective configuration back to the config file"`
	Headless   bool          `long:"headless" description:"Record without the status window"`
	Duration   time.Duration `short:"d" long:"duration" description:"Headless recording length (0 records until interrupted)"`
	Photo      bool          `long:"photo" description:"Headless: capture a still image when recording starts"`

	OutputDir string `short:"o" long:"output-dir" description:"Directory for recordings and stills"`
	VideoType string `long:"video-type" description:"Video container (mov, mp4, m4v, 3gp, 3g2)"`
	ImageType string `long:"image-type" description:"Still image type (jpg, tiff)"`
	Position  string `long:"position" choice:"back" choice:"front" description:"Initial camera position"`
	FrameRate int    `long:"fps" description:"Desired frame rate"`
	Width     int    `long:"width" description:"Output width"`
	Height    int    `long:"height" description:"Output height"`
	Audio     bool   `long:"audio" description:"Record microphone audio"`
	NoAudio   bool   `long:"no-audio" description:"Do not record audio"`

	Debug         bool   `long:"debug" description:"Enable debug logging and runtime diagnostics"`
	LogFile       string `long:"log-file" description:"Also write logs to this file, rotated"`
	MetricsListen string `long:"metrics-listen" description:"Serve Prometheus metrics on this address"`
}

// ErrHelp is returned by ParseFlags when help was requested and printed.
var ErrHelp = errors.New("help requested")

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	var f Flags
	parser := flags.NewParser(&f, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, err
	}
	return &f, nil
}

// Apply overrides cfg with every flag that was set.
func (f *Flags) Apply(cfg *Config) {
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.VideoType != "" {
		cfg.VideoFileType = f.VideoType
	}
	if f.ImageType != "" {
		cfg.ImageFileType = f.ImageType
	}
	if f.Position != "" {
		cfg.Position = f.Position
	}
	if f.FrameRate > 0 {
		cfg.FrameRate = f.FrameRate
	}
	if f.Width > 0 {
		cfg.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Height = f.Height
	}
	if f.Audio {
		cfg.AudioEnabled = true
	}
	if f.NoAudio {
		cfg.AudioEnabled = false
	}
	if f.Debug {
		cfg.Debug = true
	}
	if f.LogFile != "" {
		cfg.LogFile = f.LogFile
	}
	if f.MetricsListen != "" {
		cfg.MetricsListen = f.MetricsListen
	}
}
