package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climaguru_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "climaguru_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climaguru_queries_total",
		Help: "Weather queries by type and final state",
	}, []string{"type", "state"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "climaguru_query_duration_seconds",
		Help:    "End-to-end duration of weather query processing",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	providerFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climaguru_provider_fetches_total",
		Help: "Outbound provider fetch attempts by provider and result",
	}, []string{"provider", "result"})

	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climaguru_exports_total",
		Help: "Result downloads by format",
	}, []string{"format"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "climaguru_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	expiredSessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "climaguru_expired_sessions_swept_total",
		Help: "Sessions deactivated by the cleanup worker",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveQuery records a finished weather query with its terminal state.
func ObserveQuery(queryType, state string, duration time.Duration) {
	queriesTotal.WithLabelValues(queryType, state).Inc()
	queryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// ObserveProviderFetch records one outbound provider call.
func ObserveProviderFetch(provider, result string) {
	providerFetches.WithLabelValues(provider, result).Inc()
}

// ObserveExport records a result download.
func ObserveExport(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}

// ObserveLogin records a login attempt.
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// AddExpiredSessionsSwept bumps the cleanup counter.
func AddExpiredSessionsSwept(n int64) {
	expiredSessionsSwept.Add(float64(n))
}
