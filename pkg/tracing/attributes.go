package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Trip planning attributes
	AttrTripMode         = "trip.mode"
	AttrTripDistanceKm   = "trip.distance_km"
	AttrTripEmissionKg   = "trip.emission_kg"
	AttrTripBestMode     = "trip.best_mode"
	AttrTripCandidates   = "trip.candidates"
	AttrTripApproximated = "trip.approximated"
	AttrTripOutcome      = "trip.outcome"

	// External service attributes
	AttrServiceName      = "ecoroute.service.name"
	AttrServiceOperation = "ecoroute.service.operation"
	AttrServiceURL       = "ecoroute.service.url"
	AttrServiceStatus    = "ecoroute.service.status"

	// Retry attributes
	AttrRetryAttempt     = "retry.attempt"
	AttrRetryMaxAttempts = "retry.max_attempts"

	// Cache attributes
	AttrCacheType = "ecoroute.cache.type"
	AttrCacheHit  = "ecoroute.cache.hit"
	AttrCacheKey  = "ecoroute.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "ecoroute.ratelimit.service"
	AttrRateLimitWaitMs  = "ecoroute.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPRequestID  = "http.request_id"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names
const (
	ServiceORS       = "openrouteservice"
	ServiceNominatim = "nominatim"
	ServiceOSRM      = "osrm"
)

// Cache types
const (
	CacheTypeDistance = "distance"
	CacheTypeGeocode  = "geocode"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// ModeAttributes returns attributes describing a single mode observation.
func ModeAttributes(mode string, distanceKm float64, approximated bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTripMode, mode),
		attribute.Float64(AttrTripDistanceKm, distanceKm),
		attribute.Bool(AttrTripApproximated, approximated),
	}
}

// DecisionAttributes returns attributes describing the chosen mode.
func DecisionAttributes(bestMode string, emissionKg float64, candidates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTripBestMode, bestMode),
		attribute.Float64(AttrTripEmissionKg, emissionKg),
		attribute.Int(AttrTripCandidates, candidates),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
