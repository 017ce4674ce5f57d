package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InviteOutcomes counts submitted invitations by result (sent|failed).
	InviteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestgate_invites_total",
			Help: "Total number of guest invitations submitted upstream",
		},
		[]string{"result"},
	)

	// AuthzDecisions counts authorization outcomes by mode and result (allow|deny|error).
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestgate_authz_decisions_total",
			Help: "Total number of caller authorization decisions",
		},
		[]string{"mode", "result"},
	)

	// BulkRows counts bulk rows by disposition (valid|invalid|skipped).
	BulkRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestgate_bulk_rows_total",
			Help: "Total number of bulk rows processed by disposition",
		},
		[]string{"disposition"},
	)

	// GraphLatency measures directory service call latencies by operation.
	GraphLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guestgate_graph_latency_seconds",
			Help:    "Microsoft Graph call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guestgate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
