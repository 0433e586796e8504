package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PostTransitions counts moderation state changes. result is "applied"
	// or "skipped" for informational no-ops.
	PostTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_post_transitions_total",
		Help: "Post moderation transitions by target status and result",
	}, []string{"operation", "result"})

	// NotificationsSent counts gateway deliveries by gateway and result.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_notifications_total",
		Help: "Notification gateway deliveries by gateway and result",
	}, []string{"gateway", "result"})

	// RoleGrants counts role grant attempts by role and result.
	RoleGrants = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_role_grants_total",
		Help: "Role grant attempts by role and result",
	}, []string{"role", "result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordTransition counts one moderation operation outcome.
func RecordTransition(operation string, applied bool) {
	result := "skipped"
	if applied {
		result = "applied"
	}
	PostTransitions.WithLabelValues(operation, result).Inc()
}

// RecordNotification counts one gateway delivery attempt.
func RecordNotification(gateway string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	NotificationsSent.WithLabelValues(gateway, result).Inc()
}

// RecordRoleGrant counts one role grant attempt. Callers pass a known role
// name or "unknown" to keep the label set bounded.
func RecordRoleGrant(role string, err error) {
	result := "granted"
	if err != nil {
		result = "denied"
	}
	RoleGrants.WithLabelValues(role, result).Inc()
}
