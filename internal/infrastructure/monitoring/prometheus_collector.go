package monitoring

import (
	"time"

	"lensrelay/internal/core/domain"
	"lensrelay/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Sessions
	sessionsActive prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec

	// Pipeline
	framesProcessed   *prometheus.CounterVec
	transformFailures *prometheus.CounterVec
	detectionFailures prometheus.Counter
	detections        *prometheus.CounterVec

	// Histograms
	frameProcessing *prometheus.HistogramVec
}

var _ ports.PipelineMetrics = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the relay's collectors with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lensrelay_sessions_active",
			Help: "Number of sessions currently registered",
		}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lensrelay_sessions_total",
			Help: "Sessions ended, by terminal state",
		}, []string{"result"}),

		framesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lensrelay_frames_processed_total",
			Help: "Frames transformed successfully",
		}, []string{"transform"}),

		transformFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lensrelay_transform_failures_total",
			Help: "Frames passed through unchanged after a stage failure",
		}, []string{"transform"}),

		detectionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lensrelay_detection_failures_total",
			Help: "Detector calls that failed and rendered no detections",
		}),

		detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lensrelay_detections_total",
			Help: "Detections drawn onto frames",
		}, []string{"transform"}),

		frameProcessing: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lensrelay_frame_processing_seconds",
			Help:    "Time spent transforming one frame",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"transform"}),
	}
}

func (p *PrometheusCollector) FrameProcessed(kind domain.TransformKind, elapsed time.Duration) {
	p.framesProcessed.WithLabelValues(kind.String()).Inc()
	p.frameProcessing.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

func (p *PrometheusCollector) TransformFailed(kind domain.TransformKind) {
	p.transformFailures.WithLabelValues(kind.String()).Inc()
}

func (p *PrometheusCollector) DetectionFailed() {
	p.detectionFailures.Inc()
}

func (p *PrometheusCollector) DetectionsRendered(kind domain.TransformKind, n int) {
	if n > 0 {
		p.detections.WithLabelValues(kind.String()).Add(float64(n))
	}
}

func (p *PrometheusCollector) SessionOpened() {
	p.sessionsActive.Inc()
}

func (p *PrometheusCollector) SessionEnded(state domain.SessionState) {
	p.sessionsActive.Dec()
	p.sessionsTotal.WithLabelValues(state.String()).Inc()
}
