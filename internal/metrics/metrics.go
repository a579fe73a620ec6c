// Package metrics provides Prometheus instrumentation for the plan store,
// its API client and the dev API server.
package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contractnest"

var (
	// HTTPRequestsTotal counts dev server requests by method, route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes dev server latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIRequestsTotal counts outbound business-model API calls.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bm",
			Name:      "api_requests_total",
			Help:      "Business-model API calls by endpoint and status (HTTP code, or \"error\" for transport failures).",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration observes outbound API latency.
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bm",
			Name:      "api_request_duration_seconds",
			Help:      "Business-model API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CacheLookupsTotal counts plan cache lookups by kind (list, detail) and result (hit, miss).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bm",
			Name:      "cache_lookups_total",
			Help:      "Plan cache lookups by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// CacheFlushesTotal counts wholesale cache invalidations by reason.
	CacheFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bm",
			Name:      "cache_flushes_total",
			Help:      "Wholesale plan cache invalidations by reason (mutation, clear).",
		},
		[]string{"reason"},
	)

	// CoalescedLoadsTotal counts loads that joined an in-flight request instead of issuing one.
	CoalescedLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bm",
		Name:      "coalesced_loads_total",
		Help:      "Loads served by an already in-flight request for the same key.",
	})

	// StaleResponsesTotal counts responses dropped because newer state had already landed.
	StaleResponsesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bm",
		Name:      "stale_responses_total",
		Help:      "API responses discarded because they were older than the applied state.",
	})

	// StoreErrorsTotal counts errors recorded by the plan store per operation.
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bm",
			Name:      "store_errors_total",
			Help:      "Errors recorded by the plan store by operation.",
		},
		[]string{"operation"},
	)

	// LoadedPlans tracks the size of the store's in-memory plan list.
	LoadedPlans = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bm",
		Name:      "loaded_plans",
		Help:      "Number of plans currently held by the plan store.",
	})

	// BreakerTransitions counts API circuit breaker state changes.
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "circuitbreaker",
		Name:      "state_transitions_total",
		Help:      "Circuit breaker state transitions by key, from-state, and to-state.",
	}, []string{"key", "from_state", "to_state"})

	// RealtimeClients tracks connected event-stream clients on the dev server.
	RealtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_clients",
		Help:      "Number of currently connected event-stream clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		APIRequestsTotal,
		APIRequestDuration,
		CacheLookupsTotal,
		CacheFlushesTotal,
		CoalescedLoadsTotal,
		StaleResponsesTotal,
		StoreErrorsTotal,
		LoadedPlans,
		BreakerTransitions,
		RealtimeClients,
	)
}

// ObserveAPI records one outbound API call. status is the HTTP code, or 0 for transport failures.
func ObserveAPI(endpoint string, status int, seconds float64) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestsTotal.WithLabelValues(endpoint, label).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// CacheLookup records a cache hit or miss.
func CacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// Middleware records request count and latency for gin routes
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not the raw path
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler exposes the Prometheus registry as a gin handler
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
