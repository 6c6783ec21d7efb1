//go:build unix

package debug

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// maxRSS returns the peak resident set size in bytes.
func maxRSS() (uint64, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	rss := uint64(ru.Maxrss)
	// Linux and the BSDs report kilobytes, darwin bytes.
	if runtime.GOOS != "darwin" && runtime.GOOS != "ios" {
		rss *= 1024
	}
	return rss, nil
}

// StartMemLogger launches a goroutine that logs memory stats every interval
// until ctx is done. The rss field is the peak resident set size.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			rss, err := maxRSS()
			if err != nil && !rssErrLogged {
				logger.Warn("memlog: getrusage failed", slog.String("err", err.Error()))
				rssErrLogged = true
			}
			logMemStats(logger, rss)
		}
	}()
}
