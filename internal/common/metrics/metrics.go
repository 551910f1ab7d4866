// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ExtractionProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_provider_calls_total",
			Help: "Total extraction provider invocations",
		},
		[]string{"provider", "outcome"},
	)

	ExtractionProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "extraction_provider_duration_seconds",
			Help: "Duration of extraction provider calls in seconds",
		},
		[]string{"provider"},
	)

	ExtractionEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_escalations_total",
			Help: "Total extraction escalations between providers",
		},
		[]string{"from", "to"},
	)

	CoverageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coverage_failures_total",
			Help: "Total jobs rejected by coverage validation",
		},
		[]string{"reason"},
	)

	SLABreaches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sla_breaches_total",
			Help: "Total jobs abandoned due to deadline breaches",
		},
		[]string{"stage"},
	)

	QueueLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "job_queue_latency_seconds",
			Help:    "Time jobs spent queued before a worker picked them up",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

// PipelineSink feeds extraction orchestrator events into Prometheus.
type PipelineSink struct{}

func (PipelineSink) RecordProviderCall(provider string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ExtractionProviderCalls.WithLabelValues(provider, outcome).Inc()
	ExtractionProviderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (PipelineSink) RecordEscalation(from, to string) {
	ExtractionEscalations.WithLabelValues(from, to).Inc()
}
