// Package metrics объявляет метрики Prometheus сервиса.
// Регистрируются в глобальном реестре через promauto и отдаются на /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "birdwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "birdwatch_http_inflight_requests",
			Help: "Number of requests being served",
		},
	)

	HTTPRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_http_rejected_total",
			Help: "Requests rejected by rate or in-flight limits",
		},
		[]string{"reason"}, // "rate_limit", "inflight"
	)

	// Внешние сервисы (AI, Stripe, Cloudinary)
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "birdwatch_upstream_duration_seconds",
			Help:    "Latency of calls to external services",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "birdwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)

	// Доменные
	Identifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_identifications_total",
			Help: "Bird identifications by provider and result",
		},
		[]string{"provider", "result"},
	)

	ProximityCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "birdwatch_proximity_candidates",
			Help:    "Rows returned by the bounding-box prefilter before exact distance filtering",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	CollectionEntriesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "birdwatch_collection_entries_created_total",
			Help: "Collection entries added",
		},
	)

	SightingsReported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "birdwatch_sightings_reported_total",
			Help: "Sightings reported",
		},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_job_runs_total",
			Help: "Scheduled job runs by outcome",
		},
		[]string{"job", "outcome"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_billing_webhook_events_total",
			Help: "Billing webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	ModeratorAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_moderator_alerts_total",
			Help: "Moderator chat alerts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordHTTP записывает завершённый HTTP-запрос.
func RecordHTTP(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpstream записывает вызов внешнего сервиса.
func RecordUpstream(service string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamDuration.WithLabelValues(service, outcome).Observe(d.Seconds())
}

// RecordJob записывает запуск фоновой задачи.
func RecordJob(job string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	JobRuns.WithLabelValues(job, outcome).Inc()
}
