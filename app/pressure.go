package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/soocke/camrec/domain/capture"
)

// PressureTarget is the part of the coordinator the monitor drives.
type PressureTarget interface {
	Stats() capture.Stats
	ApplyPressure(ctx context.Context, level capture.PressureLevel) error
}

// PressureMonitor derives a system pressure level from the share of
// samples the frame delivery queue had to skip, and reports level changes
// to the coordinator.
type PressureMonitor struct {
	target   PressureTarget
	interval time.Duration
	logger   *slog.Logger

	lastDelivered uint64
	lastSkipped   uint64
	level         capture.PressureLevel
}

func NewPressureMonitor(target PressureTarget, interval time.Duration, logger *slog.Logger) *PressureMonitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PressureMonitor{target: target, interval: interval, logger: logger}
}

// Level returns the last computed level.
func (m *PressureMonitor) Level() capture.PressureLevel { return m.level }

// Sample computes the level for the counters since the previous Sample and
// applies it when it changed.
func (m *PressureMonitor) Sample(ctx context.Context) capture.PressureLevel {
	st := m.target.Stats()
	delivered := st.Delivered - m.lastDelivered
	skipped := st.Skipped - m.lastSkipped
	m.lastDelivered, m.lastSkipped = st.Delivered, st.Skipped

	level := levelForSkips(delivered, skipped)
	if level == m.level {
		return level
	}
	if err := m.target.ApplyPressure(ctx, level); err != nil {
		m.logger.Warn("apply pressure", "level", level.String(), "error", err)
		return m.level
	}
	m.logger.Debug("pressure changed", "from", m.level.String(), "to", level.String(),
		"delivered", delivered, "skipped", skipped)
	m.level = level
	return level
}

// Run samples every interval until ctx is done.
func (m *PressureMonitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sample(ctx)
		}
	}
}

func levelForSkips(delivered, skipped uint64) capture.PressureLevel {
	total := delivered + skipped
	if total == 0 {
		return capture.PressureNominal
	}
	ratio := float64(skipped) / float64(total)
	switch {
	case ratio >= 0.5:
		return capture.PressureCritical
	case ratio >= 0.2:
		return capture.PressureSerious
	case ratio >= 0.05:
		return capture.PressureFair
	default:
		return capture.PressureNominal
	}
}
