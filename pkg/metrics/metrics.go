// Package metrics provides Prometheus metrics for the price resolution engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolutionsTotal is a counter of completed price resolutions.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_resolutions_total",
			Help: "Total number of price resolutions by resulting confidence",
		},
		[]string{"confidence"},
	)

	// ResolutionDuration is a histogram of end-to-end resolution duration.
	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_resolution_duration_seconds",
			Help:    "Duration of end-to-end price resolutions",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// SourceFetchesTotal is a counter of source fetch outcomes.
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of source fetches by outcome (fetched, absent, error)",
		},
		[]string{"source", "outcome"},
	)

	// SourceFetchDuration is a histogram of provider fetch durations.
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Duration of provider fetches including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// SourceHealth is a gauge of the health status of price sources.
	SourceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health",
			Help: "Health status of price sources (1=healthy, 0=unhealthy)",
		},
		[]string{"source", "type"},
	)

	// SourceLastUpdate is a gauge of the last successful fetch timestamp per source.
	SourceLastUpdate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_last_update_timestamp",
			Help: "Unix timestamp of last successful fetch from source",
		},
		[]string{"source"},
	)

	// CacheHitsTotal is a counter of response cache hits.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"source"},
	)

	// CacheMissesTotal is a counter of response cache misses.
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_misses_total",
			Help: "Total number of response cache misses including expiries",
		},
		[]string{"source"},
	)

	// CacheEvictionsTotal is a counter of response cache LRU evictions.
	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_evictions_total",
			Help: "Total number of response cache entries evicted by the size bound",
		},
		[]string{"source"},
	)

	// CacheSize is a gauge of current response cache entry counts.
	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "response_cache_size",
			Help: "Current number of entries in the response cache",
		},
		[]string{"source"},
	)

	// RateLimitWaitsTotal is a counter of rate limiter sleeps.
	RateLimitWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_waits_total",
			Help: "Total number of acquisitions that had to sleep",
		},
		[]string{"source"},
	)

	// RateLimitSleptSeconds is a counter of cumulative seconds slept in the limiter.
	RateLimitSleptSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_slept_seconds_total",
			Help: "Cumulative seconds spent sleeping in the rate limiter",
		},
		[]string{"source"},
	)

	// RetryAttemptsTotal is a counter of retried provider fetches.
	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts after transient provider errors",
		},
		[]string{"source"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	// Register all metrics
	prometheus.MustRegister(
		ResolutionsTotal,
		ResolutionDuration,
		SourceFetchesTotal,
		SourceFetchDuration,
		SourceHealth,
		SourceLastUpdate,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		CacheSize,
		RateLimitWaitsTotal,
		RateLimitSleptSeconds,
		RetryAttemptsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      http.DefaultServeMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordResolution records a completed resolution and its duration.
func RecordResolution(confidence string, duration time.Duration) {
	ResolutionsTotal.WithLabelValues(confidence).Inc()
	ResolutionDuration.Observe(duration.Seconds())
}

// RecordSourceFetch records the outcome of a source fetch.
func RecordSourceFetch(source, outcome string) {
	SourceFetchesTotal.WithLabelValues(source, outcome).Inc()
	if outcome == "fetched" || outcome == "absent" {
		SourceLastUpdate.WithLabelValues(source).SetToCurrentTime()
	}
}

// RecordSourceFetchDuration records how long a provider fetch took.
func RecordSourceFetchDuration(source string, duration time.Duration) {
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceHealth records the health status of a source.
func RecordSourceHealth(source, sourceType string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	SourceHealth.WithLabelValues(source, sourceType).Set(val)
}

// RecordCacheHit records a response cache hit.
func RecordCacheHit(source string) {
	CacheHitsTotal.WithLabelValues(source).Inc()
}

// RecordCacheMiss records a response cache miss.
func RecordCacheMiss(source string) {
	CacheMissesTotal.WithLabelValues(source).Inc()
}

// RecordCacheEviction records an LRU eviction.
func RecordCacheEviction(source string) {
	CacheEvictionsTotal.WithLabelValues(source).Inc()
}

// RecordCacheSize records the current cache entry count.
func RecordCacheSize(source string, size int) {
	CacheSize.WithLabelValues(source).Set(float64(size))
}

// RecordRateLimitWait records a limiter sleep and its duration.
func RecordRateLimitWait(source string, slept time.Duration) {
	RateLimitWaitsTotal.WithLabelValues(source).Inc()
	RateLimitSleptSeconds.WithLabelValues(source).Add(slept.Seconds())
}

// RecordRetryAttempt records a retry after a transient provider error.
func RecordRetryAttempt(source string) {
	RetryAttemptsTotal.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
