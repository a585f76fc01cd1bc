package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eventedge",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of decision endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventedge",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by decision endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventedge",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Decision cache lookups by result",
		},
		[]string{"result"},
	)

	RescoreJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventedge",
			Subsystem: "rescore",
			Name:      "jobs_total",
			Help:      "Rescore jobs by outcome",
		},
		[]string{"outcome"},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "eventedge",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected live feed subscribers",
		},
	)

	StreamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eventedge",
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Messages dropped for slow subscribers",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheLookups, RescoreJobs, StreamClients, StreamDropped)
	})
}
