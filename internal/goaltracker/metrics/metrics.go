package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goaltracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "goaltracker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	goalsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "goaltracker",
			Name:      "goals_completed_total",
			Help:      "Goals moved to the completed state.",
		},
	)

	tokensAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "goaltracker",
			Name:      "tokens_awarded_total",
			Help:      "Tokens credited for goal completion.",
		},
	)

	membershipChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goaltracker",
			Name:      "group_membership_changes_total",
			Help:      "Group members added or removed.",
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		goalsCompleted,
		tokensAwarded,
		membershipChanges,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordGoalCompleted(tokens int) {
	goalsCompleted.Inc()
	tokensAwarded.Add(float64(tokens))
}

func RecordMembershipChange(op string) {
	membershipChanges.WithLabelValues(op).Inc()
}
