// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "copilot_worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "copilot_worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	// AdapterFetches counts adapter calls by outcome: ok, error, timeout, panic, skipped.
	AdapterFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_adapter_fetches_total",
			Help: "Adapter fetch attempts by outcome",
		},
		[]string{"adapter", "outcome"},
	)

	AdapterFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_adapter_fetch_duration_seconds",
			Help:    "Duration of adapter fetch calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"adapter"},
	)

	AdapterRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_adapter_records_total",
			Help: "Records contributed by each adapter",
		},
		[]string{"adapter"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_cache_lookups_total",
			Help: "Cache lookups by backend and result (hit, miss, expired)",
		},
		[]string{"backend", "result"},
	)

	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_pipeline_requests_total",
			Help: "Copilot requests by outcome",
		},
		[]string{"outcome"},
	)

	TranslationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_translation_fallbacks_total",
			Help: "Translations that degraded to the untranslated text",
		},
		[]string{"direction"},
	)

	FusionDomainFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_fusion_domain_failures_total",
			Help: "Structured domains omitted from analysis after a validation failure",
		},
		[]string{"domain"},
	)

	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_alerts_published_total",
			Help: "Urgent recommendation alerts by outcome",
		},
		[]string{"outcome"},
	)
)
