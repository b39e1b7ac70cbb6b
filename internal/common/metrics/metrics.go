// internal/common/metrics/metrics.go
package metrics

import (
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

	IntakeTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_turns_total",
			Help: "Chat turns handled, by resulting stage",
		},
		[]string{"stage"},
	)

	IntakeStageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_stage_transitions_total",
			Help: "Stage changes between consecutive turns",
		},
		[]string{"from", "to"},
	)

	TopicDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_topic_decisions_total",
			Help: "Topic gateway outcomes",
		},
		[]string{"outcome"}, // bypassed, on_topic, off_topic
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genai_failures_total",
			Help: "Failed generation calls by operation and category",
		},
		[]string{"operation", "category"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_rate_limit_rejections_total",
			Help: "Requests rejected by the per-IP limiter",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_store_errors_total",
			Help: "Session store failures by operation",
		},
		[]string{"operation"},
	)
)
