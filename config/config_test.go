package config

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/soocke/camrec/domain/media"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	vt, _ := cfg.VideoType()
	it, _ := cfg.ImageType()
	if vt != media.FileTypeMOV || it != media.FileTypeJPG {
		t.Fatalf("unexpected default types %v %v", vt, it)
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 641, 481
	cfg.FrameRate = 500
	cfg.PressureFrameRate = 90
	cfg.AudioChannels = 8
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Fatalf("size not made even: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FrameRate != 30 || cfg.PressureFrameRate != 20 || cfg.AudioChannels != 1 {
		t.Fatalf("not clamped: %+v", cfg)
	}
}

func TestValidateRejectsFileTypes(t *testing.T) {
	for _, tc := range []struct{ video, image string }{
		{"avi", "jpg"},
		{"jpg", "jpg"},
		{"mov", "mp4"},
		{"mov", "heic"},
	} {
		cfg := DefaultConfig()
		cfg.VideoFileType, cfg.ImageFileType = tc.video, tc.image
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s/%s accepted", tc.video, tc.image)
		}
	}
	cfg := DefaultConfig()
	cfg.ImageFileType = "tif"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("tif alias rejected: %v", err)
	}
}

func TestFrontRegion(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.FrontRegion().Empty() {
		t.Fatalf("default front region should be empty")
	}
	cfg.FrontX, cfg.FrontY, cfg.FrontW, cfg.FrontH = 10, 20, 300, 200
	if got := cfg.FrontRegion(); got != image.Rect(10, 20, 310, 220) {
		t.Fatalf("region = %v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "camrec.json")
	cfg := DefaultConfig()
	cfg.OutputDir = "/tmp/rec"
	cfg.VideoFileType = "mp4"
	cfg.AudioEnabled = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.OutputDir != "/tmp/rec" || got.VideoFileType != "mp4" || !got.AudioEnabled {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FrameRate != DefaultConfig().FrameRate {
		t.Fatalf("expected defaults")
	}
}

func TestParseFlagsApply(t *testing.T) {
	f, err := ParseFlags([]string{"--headless", "-d", "5s", "-o", "/data", "--video-type", "mp4", "--position", "front", "--fps", "24", "--audio"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.Headless || f.Duration.Seconds() != 5 {
		t.Fatalf("headless flags not parsed: %+v", f)
	}
	cfg := DefaultConfig()
	f.Apply(cfg)
	if cfg.OutputDir != "/data" || cfg.VideoFileType != "mp4" || cfg.Position != "front" || cfg.FrameRate != 24 || !cfg.AudioEnabled {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if f.ConfigFile != "camrec.json" {
		t.Fatalf("default config path = %q", f.ConfigFile)
	}
}

func TestParseFlagsRejectsBadChoice(t *testing.T) {
	if _, err := ParseFlags([]string{"--position", "side"}); err == nil || errors.Is(err, ErrHelp) {
		t.Fatalf("expected choice error, got %v", err)
	}
}
