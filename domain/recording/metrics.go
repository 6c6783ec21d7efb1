package recording

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds session counters. A nil registerer yields unregistered
// collectors.
type Metrics struct {
	framesAppended *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	corrections    prometheus.Counter
	recordings     *prometheus.CounterVec
	state          prometheus.Gauge
	flushSeconds   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		framesAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_frames_appended_total",
			Help: "Samples appended to the writer",
		}, []string{"track"}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_frames_dropped_total",
			Help: "Samples dropped before reaching the writer",
		}, []string{"track", "reason"}),
		corrections: f.NewCounter(prometheus.CounterOpts{
			Name: "camrec_timestamp_corrections_total",
			Help: "Video timestamps moved back onto the frame cadence",
		}),
		recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_recordings_total",
			Help: "Recordings by outcome",
		}, []string{"result"}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Name: "camrec_session_state",
			Help: "Current session state (0 idle, 1 starting, 2 writing, 3 finishing, 4 cancelling, 5 failed)",
		}),
		flushSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "camrec_flush_seconds",
			Help:    "Time spent finalizing a recording",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
