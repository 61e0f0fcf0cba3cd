package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WhoisFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whois_fetch_latency_ms",
			Help:    "WHOIS fetch latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"status"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of one full sweep over all tracked domains",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
	)

	DomainsChecked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domains_checked_total",
			Help: "Total number of per-domain sweep results",
		},
		[]string{"status"}, // status: success, fetch_error, persist_error
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"kind", "status"}, // kind: dropped, expiry_changed, expiry_approaching
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Total number of queries exceeding the slow-query threshold",
		},
	)
)

// RecordWhoisFetch records the outcome and latency of one WHOIS query.
func RecordWhoisFetch(status string, duration time.Duration) {
	WhoisFetchLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordSweepDuration records the wall time of one full sweep.
func RecordSweepDuration(duration time.Duration) {
	SweepDuration.Observe(duration.Seconds())
}

// IncrementDomainChecked counts one per-domain result.
func IncrementDomainChecked(status string) {
	DomainsChecked.WithLabelValues(status).Inc()
}

// IncrementNotification counts one delivery attempt.
func IncrementNotification(kind, status string) {
	NotificationsSent.WithLabelValues(kind, status).Inc()
}

// IncrementSlowQuery counts one query over the slow-query threshold. The
// offending SQL goes to the log, not the label set.
func IncrementSlowQuery() {
	SlowQueries.Inc()
}

// RecordDBQueryDuration records the latency of one repository query.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
