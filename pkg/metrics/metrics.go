package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CredentialsIssued records issuance attempts by result (success|failure).
	CredentialsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_credentials_issued_total",
			Help: "Total number of credential issuance attempts",
		},
		[]string{"result"},
	)

	// IssueRetries counts credential id regenerations after a uniqueness conflict.
	IssueRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_credential_issue_retries_total",
			Help: "Credential id regenerations caused by storage uniqueness conflicts",
		},
	)

	// Validations counts validation attempts by outcome reason.
	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_credential_validations_total",
			Help: "Total number of credential validation attempts",
		},
		[]string{"reason"},
	)

	// BatchSize observes the number of subjects per batch issuance.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_batch_issue_subjects",
			Help:    "Subjects per batch issuance request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	// CredentialsExpired counts records deactivated by the expiry sweep.
	CredentialsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_credentials_expired_total",
			Help: "Credentials deactivated by the maintenance expiry sweep",
		},
	)

	// CardsRendered records card/archive rendering outcomes per subject.
	CardsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_cards_rendered_total",
			Help: "Card documents rendered by result",
		},
		[]string{"result"},
	)

	// MaintenanceRuns counts background job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_maintenance_runs_total",
			Help: "Background maintenance job runs by result",
		},
		[]string{"job", "result"},
	)

	// OpsLatency observes request latency on the operational HTTP listener.
	OpsLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_ops_request_duration_seconds",
			Help:    "Latency of operational HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
