// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProcessWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_process_writes_total",
			Help: "Process store writes issued by the synchronizer",
		},
		[]string{"op", "outcome"},
	)

	CoalescedSchedules = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wizard_schedules_coalesced_total",
			Help: "Schedule calls folded into a pending write",
		},
	)

	Hydrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_hydrations_total",
			Help: "Hydration attempts by id source and outcome",
		},
		[]string{"source", "outcome"},
	)

	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Wizard navigation attempts",
		},
		[]string{"action", "outcome"},
	)

	QueryResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_query_results_total",
			Help: "Sequenced query responses by view and outcome (applied, stale, failed)",
		},
		[]string{"view", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_query_duration_seconds",
			Help: "Duration of search queries in seconds",
		},
		[]string{"view"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cosigner_notifications_total",
			Help: "Co-signer notifications by channel and status",
		},
		[]string{"channel", "status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency",
		},
		[]string{"method", "route"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_active_sessions",
			Help: "Wizard sessions held in memory",
		},
	)
)
