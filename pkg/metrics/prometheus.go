package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions *prometheus.CounterVec
	overall   prometheus.Histogram
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a recorder registered on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventedge_decisions_total",
				Help: "Decisions by signal, avoid code and grade",
			},
			[]string{"signal", "avoid_code", "grade"},
		),
		overall: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventedge_overall_score",
				Help:    "Distribution of overall confidence scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventedge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventedge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision counts one built decision.
func (r *Recorder) RecordDecision(signal, avoidCode, grade string) {
	if avoidCode == "" {
		avoidCode = "none"
	}
	r.decisions.WithLabelValues(signal, avoidCode, grade).Inc()
}

// RecordOverall observes an overall confidence score.
func (r *Recorder) RecordOverall(overall int) {
	r.overall.Observe(float64(overall))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
