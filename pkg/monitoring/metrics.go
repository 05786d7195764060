// Package monitoring exposes Prometheus metrics and health endpoints.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "ecoroute"
)

// Trip request outcomes
const (
	OutcomeSuccess        = "success"
	OutcomeNoRoute        = "no_route"
	OutcomeGeocodeFailed  = "geocode_failed"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeError          = "error"
)

var (
	// Trip planning metrics
	TripRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_trip_requests_total",
			Help: "Total number of trip requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	TripRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_trip_request_duration_seconds",
			Help:    "Trip request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"kind"},
	)

	ModeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_mode_lookups_total",
			Help: "Per-mode distance lookups by outcome",
		},
		[]string{"mode", "outcome"},
	)

	ModesFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_modes_filtered_total",
			Help: "Candidates removed by the feasibility thresholds",
		},
		[]string{"mode"},
	)

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_decisions_total",
			Help: "Selected lowest-emission mode per decision",
		},
		[]string{"mode"},
	)

	CO2SavingsKg = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecoroute_co2_savings_kg",
			Help:    "CO2 saved against driving per decision, in kg",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50},
		},
	)

	// MCP tool metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_mcp_requests_total",
			Help: "Total number of MCP tool calls processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_mcp_request_duration_seconds",
			Help:    "MCP tool call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"service"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// ServiceHealth is the body of the /health endpoint.
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Profile       string                 `json:"emission_profile,omitempty"`
}

// ConnStatus is the last known state of an external dependency.
type ConnStatus struct {
	Status    string    `json:"status"`               // "connected", "degraded", "error"
	Latency   int64     `json:"latency_ms,omitempty"` // latency of the last probe
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordTripRequest counts one planning or evaluation request.
func RecordTripRequest(kind, outcome string, duration time.Duration) {
	TripRequestsTotal.WithLabelValues(kind, outcome).Inc()
	TripRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordModeLookup counts the outcome of one per-mode distance lookup.
func RecordModeLookup(mode, outcome string) {
	ModeLookupsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordModeFiltered counts a candidate dropped by its distance bounds.
func RecordModeFiltered(mode string) {
	ModesFilteredTotal.WithLabelValues(mode).Inc()
}

// RecordDecision counts the selected mode and, when a comparison against
// driving exists, the CO2 it saves.
func RecordDecision(mode string, savingsKg *float64) {
	DecisionsTotal.WithLabelValues(mode).Inc()
	if savingsKg != nil {
		CO2SavingsKg.Observe(*savingsKg)
	}
}

func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, status(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, status(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitExceeded(service string) {
	RateLimitExceeded.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
