// README: Prometheus collectors for imports, claims, decisions, notifications and HTTP latency.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// ImportsTotal counts route imports per file, labeled by outcome
	// (imported, duplicate, parse_error, failed).
	ImportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routedesk",
		Subsystem: "routes",
		Name:      "imports_total",
		Help:      "Route spreadsheet imports by outcome.",
	}, []string{"outcome"})

	RoutesDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routedesk",
		Subsystem: "routes",
		Name:      "deleted_total",
		Help:      "Routes permanently deleted.",
	})

	// ClaimsTotal counts claim attempts (claimed, not_available, not_found, failed).
	ClaimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routedesk",
		Subsystem: "assignments",
		Name:      "claims_total",
		Help:      "Route claim attempts by outcome.",
	}, []string{"outcome"})

	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routedesk",
		Subsystem: "assignments",
		Name:      "decisions_total",
		Help:      "Admin decisions on pending claims, labeled by decision and outcome.",
	}, []string{"decision", "outcome"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routedesk",
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Notification deliveries per sink, labeled by result.",
	}, []string{"sink", "result"})

	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routedesk",
		Subsystem: "notify",
		Name:      "dropped_total",
		Help:      "Notifications dropped because the relay queue was full.",
	})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routedesk",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route template and status.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route", "status"})
)

// Register registers the collectors with the default registry. Safe to call
// multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ImportsTotal,
			RoutesDeletedTotal,
			ClaimsTotal,
			DecisionsTotal,
			NotificationsTotal,
			NotificationsDropped,
			HTTPRequestDuration,
		)
	})
}

func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
