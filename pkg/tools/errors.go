package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// Guidance attached to tool errors.
const (
	GuidanceAddress     = "Try a more specific address with city and country, or pass coordinates."
	GuidanceNoRoute     = "No mode could reach the destination within its distance limits. Check that both places are reachable by road."
	GuidanceUnavailable = "The routing service has no route for this mode. Try another mode or omit mode to compare all of them."
	GuidanceTimeout     = "The routing service did not answer in time. Please try again in a few seconds."
	GuidanceGeneral     = "Please try again later or modify your request parameters."
)

// ErrorResponse returns a plain error result.
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// toolError turns a planning or validation failure into a coded error result.
func toolError(err error) *mcp.CallToolResult {
	var coded *core.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return core.Wrap(err, core.ErrServiceTimeout, "request timed out").
			WithGuidance(GuidanceTimeout).ToMCPResult()
	case errors.Is(err, provider.ErrGeocoding) && provider.IsInvalidAddress(err):
		return core.Wrap(err, core.ErrAddressNotFound, "Invalid address").
			WithGuidance(GuidanceAddress).ToMCPResult()
	case errors.Is(err, provider.ErrGeocoding):
		return core.Wrap(err, core.ErrServiceUnavailable, "geocoding service unavailable").
			WithGuidance(GuidanceGeneral).ToMCPResult()
	case errors.Is(err, trip.ErrNoFeasibleRoute):
		return core.Wrap(err, core.ErrNoFeasibleRoute, "No route found").
			WithGuidance(GuidanceNoRoute).ToMCPResult()
	case errors.Is(err, trip.ErrModeUnavailable):
		return core.Wrap(err, core.ErrRouteNotFound, "No route found").
			WithGuidance(GuidanceUnavailable).ToMCPResult()
	case errors.As(err, &coded):
		return coded.ToMCPResult()
	default:
		return core.Wrap(err, core.ErrInternalError, fmt.Sprintf("request failed: %v", err)).
			WithGuidance(GuidanceGeneral).ToMCPResult()
	}
}

// GetToolUsageExample returns an example argument object for a tool.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"plan_low_carbon_trip": `{
  "origin": "Alexanderplatz, Berlin",
  "destination": "Potsdam Hauptbahnhof"
}`,
		"estimate_emissions": `{
  "distance_km": 12.5,
  "mode": "driving-car"
}`,
		"approximate_transit": `{
  "distance_km": 30
}`,
		"geocode_address": `{
  "address": "Brandenburger Tor, Berlin"
}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}
	return "{}"
}
