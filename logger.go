package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrick/logrotate/rotator"
)

// logBackend is the io.Writer behind the slog handler. Every line goes to
// stdout and, when a log file is configured, to a size-rotated file.
type logBackend struct {
	mu      sync.Mutex
	stdout  io.Writer
	rotator *rotator.Rotator
}

func newLogBackend(logFile string, maxLogFiles int) (*logBackend, error) {
	b := &logBackend{stdout: os.Stdout}
	if logFile == "" {
		return b, nil
	}
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, 1024, false, maxLogFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	b.rotator = r
	return b, nil
}

func (b *logBackend) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rotator != nil {
		b.rotator.Write(p)
	}
	return b.stdout.Write(p)
}

func (b *logBackend) Close() error {
	if b.rotator == nil {
		return nil
	}
	return b.rotator.Close()
}

// NewLogger returns a structured slog.Logger with the given level writing to w.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
