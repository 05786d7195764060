package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// DefaultOSRMBaseURL is the public OSRM demo server.
const DefaultOSRMBaseURL = "https://router.project-osrm.org"

// OSRMOptions defines options for OSRM route requests
type OSRMOptions struct {
	// Base URL for the OSRM service
	BaseURL string

	// Profiles maps modes to OSRM profile names (car, bike, foot)
	Profiles map[emission.Mode]string

	// Overview determines the geometry precision
	// "simplified", "full", "false"
	Overview string

	// Geometries controls the format of the returned geometry
	// "polyline", "polyline6", "geojson"
	Geometries string
}

// DefaultOSRMOptions returns reasonable defaults for OSRM requests
func DefaultOSRMOptions() OSRMOptions {
	return OSRMOptions{
		BaseURL: DefaultOSRMBaseURL,
		Profiles: map[emission.Mode]string{
			emission.Walking: "foot",
			emission.Cycling: "bike",
			emission.Driving: "car",
		},
		Overview:   "simplified",
		Geometries: "polyline",
	}
}

// OSRMRoute represents a route returned by the OSRM service
type OSRMRoute struct {
	Duration   float64 `json:"duration"`    // Duration in seconds
	Distance   float64 `json:"distance"`    // Distance in meters
	Geometry   string  `json:"geometry"`    // Encoded polyline or GeoJSON
	Weight     float64 `json:"weight"`      // Weight value (typically duration)
	WeightName string  `json:"weight_name"` // Name of the weight metric
}

// OSRMWaypoint represents a waypoint in the route
type OSRMWaypoint struct {
	Name     string    `json:"name"`     // Street name
	Location []float64 `json:"location"` // Coordinates [lon, lat]
	Distance float64   `json:"distance"` // Distance from requested coordinate
}

// OSRMResult represents the complete response from the OSRM service
type OSRMResult struct {
	Code      string         `json:"code"`      // Status code
	Message   string         `json:"message"`   // Error message if applicable
	Routes    []OSRMRoute    `json:"routes"`    // Array of routes
	Waypoints []OSRMWaypoint `json:"waypoints"` // Array of waypoints
}

// OSRMClient is a DistanceProvider backed by an OSRM server.
type OSRMClient struct {
	client  *Client
	options OSRMOptions
	logger  *slog.Logger
}

// NewOSRMClient creates an OSRM backed provider.
func NewOSRMClient(client *Client, options OSRMOptions) *OSRMClient {
	defaults := DefaultOSRMOptions()
	if options.BaseURL == "" {
		options.BaseURL = defaults.BaseURL
	}
	if len(options.Profiles) == 0 {
		options.Profiles = defaults.Profiles
	}
	if options.Overview == "" {
		options.Overview = defaults.Overview
	}
	if options.Geometries == "" {
		options.Geometries = defaults.Geometries
	}
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")
	return &OSRMClient{
		client:  client,
		options: options,
		logger:  slog.Default().With("service", tracing.ServiceOSRM),
	}
}

// Name identifies the backend.
func (c *OSRMClient) Name() string { return tracing.ServiceOSRM }

// Distance implements DistanceProvider.
func (c *OSRMClient) Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (Route, error) {
	profile, ok := c.options.Profiles[mode]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}

	// OSRM expects coordinates as longitude,latitude
	reqURL := fmt.Sprintf("%s/route/v1/%s/%s;%s", c.options.BaseURL, profile, from.LonLat(), to.LonLat())
	q := url.Values{}
	q.Set("overview", c.options.Overview)
	q.Set("geometries", c.options.Geometries)
	q.Set("alternatives", "false")
	q.Set("steps", "false")
	reqURL += "?" + q.Encode()

	body, err := c.client.Get(ctx, tracing.ServiceOSRM, "route", reqURL)

	var result OSRMResult
	if len(body) > 0 {
		if decodeErr := json.Unmarshal(body, &result); decodeErr != nil && err == nil {
			return Route{}, core.Wrap(decodeErr, core.ErrParseError, "decoding OSRM response")
		}
	}

	switch result.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		c.logger.Debug("no route", "mode", mode, "code", result.Code, "message", result.Message)
		return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, result.Message)
	case "":
		if err != nil {
			return Route{}, err
		}
		return Route{}, core.NewError(core.ErrParseError, "OSRM response without status code")
	default:
		if err == nil {
			err = core.NewError(core.ErrInvalidInput, fmt.Sprintf("OSRM error: %s", result.Message))
		}
		return Route{}, err
	}

	if len(result.Routes) == 0 {
		return Route{}, fmt.Errorf("%w: empty OSRM response for %s", ErrNoRoute, mode)
	}

	return Route{DistanceKm: result.Routes[0].Distance / 1000, Raw: json.RawMessage(body)}, nil
}

// HealthCheck probes the nearest service, which is cheap on every OSRM server.
func (c *OSRMClient) HealthCheck(ctx context.Context) error {
	_, err := c.client.Get(ctx, tracing.ServiceOSRM, "health", c.options.BaseURL+"/nearest/v1/driving/0,0")
	var coded *core.Error
	if errors.As(err, &coded) && coded.Status > 0 && coded.Status < 500 {
		return nil
	}
	return err
}
