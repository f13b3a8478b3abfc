package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound HTTP client metrics
	ClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_client_requests_total",
			Help: "Total number of upstream HTTP calls by outcome",
		},
		[]string{"outcome"}, // outcome: success, retry, error
	)

	ClientRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iph_client_retries_total",
			Help: "Total number of upstream HTTP request retries",
		},
	)

	ClientCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iph_client_call_duration_seconds",
			Help:    "Duration of upstream HTTP calls including retries and backoff",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ClientBackoffWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iph_client_backoff_wait_seconds",
			Help:    "Duration of backoff waits between retry attempts",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// TTL cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_cache_hits_total",
			Help: "Total number of cache hits by backend",
		},
		[]string{"backend"}, // backend: session, persistent
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_cache_misses_total",
			Help: "Total number of cache misses by backend (includes lazy expirations)",
		},
		[]string{"backend"},
	)

	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_cache_expirations_total",
			Help: "Total number of entries purged on read after their TTL elapsed",
		},
		[]string{"backend"},
	)

	CacheWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_cache_write_failures_total",
			Help: "Total number of best-effort cache writes that failed",
		},
		[]string{"backend"},
	)

	// Circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iph_circuit_breaker_state",
			Help: "Current state of the circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)

	// API server metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iph_http_request_duration_seconds",
			Help:    "Duration of handled HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iph_rate_limit_rejections_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"scope"}, // scope: global, ip
	)
)
