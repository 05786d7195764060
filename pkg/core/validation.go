package core

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/mark3labs/mcp-go/mcp"
)

// MaxDistanceKm bounds distances accepted from callers. Nothing on
// Earth's surface is further than half its circumference by road.
const MaxDistanceKm = 40075.0

// modeTokens lists the accepted mode tokens for error suggestions.
func modeTokens() []string {
	out := make([]string, len(emission.Modes))
	for i, m := range emission.Modes {
		out[i] = m.String()
	}
	return out
}

// RequireParam rejects a missing or blank parameter.
func RequireParam(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", NewValidationError(ErrMissingParameter, fmt.Sprintf("%s is required", name)).
			WithQuery(name)
	}
	return value, nil
}

// ParseMode validates a transport mode token.
func ParseMode(token string) (emission.Mode, error) {
	mode, err := emission.ParseMode(token)
	if err != nil {
		return "", NewError(ErrUnknownMode, fmt.Sprintf("unknown transport mode %q", token)).
			WithQuery(token).
			WithGuidance("Use one of the listed mode tokens").
			WithSuggestions(modeTokens()...)
	}
	return mode, nil
}

// ValidateDistance checks that km is a finite distance within range.
func ValidateDistance(km float64) error {
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return NewValidationError(ErrInvalidParameter,
			fmt.Sprintf("distance must be a non-negative number of kilometres, got %v", km))
	}
	if km > MaxDistanceKm {
		return NewValidationError(ErrInvalidParameter,
			fmt.Sprintf("distance must not exceed %.0f km, got %v", MaxDistanceKm, km))
	}
	return nil
}

// ParseDistance parses and validates a distance given as text.
func ParseDistance(raw string) (float64, error) {
	raw, err := RequireParam("distance_km", raw)
	if err != nil {
		return 0, err
	}
	km, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, NewValidationError(ErrInvalidParameter, fmt.Sprintf("distance_km %q is not a number", raw)).
			WithQuery(raw)
	}
	if err := ValidateDistance(km); err != nil {
		return 0, err
	}
	return km, nil
}

// StringArg extracts a string argument from a tool call.
func StringArg(req mcp.CallToolRequest, key string, required bool) (string, error) {
	value := strings.TrimSpace(mcp.ParseString(req, key, ""))
	if value == "" && required {
		return "", NewValidationError(ErrMissingParameter, fmt.Sprintf("%s is required", key)).
			WithQuery(key)
	}
	return value, nil
}

// ParseEndpoints extracts the origin and destination of a tool call.
func ParseEndpoints(req mcp.CallToolRequest, originKey, destinationKey string) (string, string, error) {
	origin, err := StringArg(req, originKey, true)
	if err != nil {
		return "", "", err
	}
	destination, err := StringArg(req, destinationKey, true)
	if err != nil {
		return "", "", err
	}
	return origin, destination, nil
}

// ParseModeArg extracts an optional mode argument. ok is false when the
// argument is absent.
func ParseModeArg(req mcp.CallToolRequest, key string) (mode emission.Mode, ok bool, err error) {
	token, _ := StringArg(req, key, false)
	if token == "" {
		return "", false, nil
	}
	mode, err = ParseMode(token)
	if err != nil {
		return "", false, err
	}
	return mode, true, nil
}

// ParseDistanceArg extracts and validates a distance argument.
func ParseDistanceArg(req mcp.CallToolRequest, key string) (float64, error) {
	raw, present := req.GetArguments()[key]
	if !present || raw == nil {
		return 0, NewValidationError(ErrMissingParameter, fmt.Sprintf("%s is required", key)).
			WithQuery(key)
	}
	if text, ok := raw.(string); ok {
		return ParseDistance(text)
	}
	km := mcp.ParseFloat64(req, key, math.NaN())
	if err := ValidateDistance(km); err != nil {
		return 0, err
	}
	return km, nil
}

// ParseEndpointsWithLog parses endpoints and logs any errors
func ParseEndpointsWithLog(req mcp.CallToolRequest, logger *slog.Logger, originKey, destinationKey string) (string, string, error) {
	origin, destination, err := ParseEndpoints(req, originKey, destinationKey)
	if err != nil {
		logger.Error("invalid endpoints", "error", err)
	}
	return origin, destination, err
}
