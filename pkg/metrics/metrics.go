package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Follow-up outcomes per run item
	FollowupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fupm_followup_outcomes_total",
			Help: "Follow-up scheduler outcomes",
		},
		[]string{"outcome"}, // processed, skipped, error
	)

	// Follow-ups dispatched per mode
	FollowupsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fupm_followups_dispatched_total",
			Help: "Follow-ups recorded after a successful dispatch",
		},
		[]string{"mode"}, // draft, sent
	)

	// Requests created by thread ingestion
	RequestsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fupm_requests_ingested_total",
			Help: "Requests created from labeled threads",
		},
	)

	// Requests closed by the payment detector
	RequestsAutoClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fupm_requests_auto_closed_total",
			Help: "Requests closed after payment was detected",
		},
	)

	// Collaborator call latency (seconds)
	CollaboratorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fupm_collaborator_call_duration_seconds",
			Help:    "Mail gateway and language model call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"collaborator", "operation", "status"},
	)

	// Database query latency (seconds)
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fupm_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// Full cron run latency (seconds)
	CronRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fupm_cron_run_duration_seconds",
			Help:    "Duration of a full periodic run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func IncrementFollowupOutcome(outcome string) {
	FollowupOutcomes.WithLabelValues(outcome).Inc()
}

func IncrementFollowupDispatched(mode string) {
	FollowupsDispatched.WithLabelValues(mode).Inc()
}

func AddRequestsIngested(n int) {
	RequestsIngested.Add(float64(n))
}

func IncrementRequestsAutoClosed() {
	RequestsAutoClosed.Inc()
}

func RecordCollaboratorCall(collaborator, operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CollaboratorCallDuration.WithLabelValues(collaborator, operation, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func RecordCronRun(duration time.Duration) {
	CronRunDuration.Observe(duration.Seconds())
}
