package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/camrec/app"
	"github.com/soocke/camrec/config"
	"github.com/soocke/camrec/debug"
	"github.com/soocke/camrec/encoder/ffmpeg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	// Base config from file, then command-line overrides.
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.ConfigFile, err)
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if flags.SaveConfig {
		if err := cfg.Save(flags.ConfigFile); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	backend, err := newLogBackend(cfg.LogFile, cfg.MaxLogFiles)
	if err != nil {
		return err
	}
	defer backend.Close()
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(backend, level)

	if err := ffmpeg.CheckInstallation(cfg.FFmpegPath); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newRegistry()
	if cfg.MetricsListen != "" {
		go func() {
			if err := runMetricsListener(ctx, cfg.MetricsListen, reg, logger); err != nil {
				logger.Error("metrics listener", "error", err)
			}
		}()
	}
	if cfg.Debug {
		debug.StartGoroutineLogger(ctx, 10*time.Second, logger.With("component", "debug"))
		debug.StartMemLogger(ctx, 10*time.Second, logger.With("component", "debug"))
	}

	c, err := app.BuildContainer(cfg, flags.ConfigFile, app.DefaultDevices(cfg, reg, logger), logger)
	if err != nil {
		return err
	}

	if flags.Headless {
		target, err := app.RunHeadless(ctx, c, app.HeadlessOptions{Duration: flags.Duration, Photo: flags.Photo})
		if err != nil {
			return err
		}
		if d, perr := ffmpeg.Probe(context.Background(), target.Path); perr == nil {
			logger.Info("recording written", "target", target.Path, "duration", d)
		} else {
			logger.Warn("probe failed", "target", target.Path, "error", perr)
		}
		fmt.Println(target.Path)
		return nil
	}

	application := app.NewApp("camrec", 820, 520, c)
	application.Start()
	return nil
}
