package capture

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/soocke/camrec/domain/media"
)

// Stats summarises frame delivery for instrumentation.
type Stats struct {
	Delivered      uint64
	Skipped        uint64
	Stills         uint64
	LastFrame      time.Time
	LatestFrameAge time.Duration
	Position       media.Position
	FrameRate      int
	Zoom           float64
	Throttled      bool
	Running        bool
}

// DeviceStats summarises a device capture loop.
type DeviceStats struct {
	Captures   uint64
	Skipped    uint64
	AvgCapture time.Duration
	Sequence   uint64
}

// Metrics holds coordinator collectors.
type Metrics struct {
	delivered     *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	stills        *prometheus.CounterVec
	switches      prometheus.Counter
	interruptions prometheus.Counter
	frameRate     prometheus.Gauge
	zoom          prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_samples_delivered_total",
			Help: "Samples processed on the frame delivery queue",
		}, []string{"track"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_samples_skipped_total",
			Help: "Samples discarded because the frame delivery queue was full",
		}, []string{"track"}),
		stills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "camrec_stills_total",
			Help: "Still images by outcome",
		}, []string{"result"}),
		switches: f.NewCounter(prometheus.CounterOpts{
			Name: "camrec_camera_switches_total",
			Help: "Completed camera switches",
		}),
		interruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "camrec_interruptions_total",
			Help: "Device interruptions",
		}),
		frameRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "camrec_frame_rate",
			Help: "Active video frame rate",
		}),
		zoom: f.NewGauge(prometheus.GaugeOpts{
			Name: "camrec_zoom_factor",
			Help: "Active zoom factor",
		}),
	}
}
