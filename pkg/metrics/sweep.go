package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kitly"

// SweepMetrics records batch outcomes for the inbox and outbox poll loops.
type SweepMetrics struct {
	duration  *prometheus.HistogramVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	backlog   *prometheus.GaugeVec
}

// NewSweepMetrics registers the sweep metrics on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of sweep batches in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sweep"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_events_processed_total",
		Help:      "Events moved to a processed state by sweeps.",
	}, []string{"sweep"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_events_failed_total",
		Help:      "Events moved to a failed state by sweeps.",
	}, []string{"sweep"})
	backlog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "sweep_backlog",
		Help:      "Rows still waiting for the sweep, sampled once per cycle.",
	}, []string{"sweep"})
	reg.MustRegister(duration, processed, failed, backlog)
	return &SweepMetrics{
		duration:  duration,
		processed: processed,
		failed:    failed,
		backlog:   backlog,
	}
}

// ObserveDuration records how long one batch took for the named sweep.
func (s *SweepMetrics) ObserveDuration(sweep string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(sweep)).Observe(duration.Seconds())
}

// AddProcessed counts events that reached a processed state.
func (s *SweepMetrics) AddProcessed(sweep string, n int) {
	if s == nil || s.processed == nil || n <= 0 {
		return
	}
	s.processed.WithLabelValues(normalizeLabel(sweep)).Add(float64(n))
}

// SetBacklog records how many rows are still waiting for the named sweep.
func (s *SweepMetrics) SetBacklog(sweep string, n int64) {
	if s == nil || s.backlog == nil {
		return
	}
	s.backlog.WithLabelValues(normalizeLabel(sweep)).Set(float64(n))
}

// AddFailed counts events that reached a failed state.
func (s *SweepMetrics) AddFailed(sweep string, n int) {
	if s == nil || s.failed == nil || n <= 0 {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(sweep)).Add(float64(n))
}
