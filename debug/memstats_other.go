//go:build !unix && !windows

package debug

import (
	"context"
	"log/slog"
	"time"
)

// StartMemLogger logs Go heap stats every interval; rss is not available
// on this platform and is reported as zero.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logMemStats(logger, 0)
			}
		}
	}()
}
