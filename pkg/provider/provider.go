// Package provider talks to the external routing and geocoding services
// and wraps them with retry, caching and rate limiting.
package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
)

var (
	// ErrNoRoute means the service answered but found no route for the mode.
	ErrNoRoute = errors.New("no route found")
	// ErrUnsupportedMode means the backend has no profile for the mode.
	ErrUnsupportedMode = errors.New("mode not supported by provider")
	// ErrAddressNotFound means geocoding returned no match.
	ErrAddressNotFound = errors.New("address not found")
)

// Route is a single routing answer.
type Route struct {
	DistanceKm float64         `json:"distance_km"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// DistanceProvider returns the travelled distance between two points for a mode.
type DistanceProvider interface {
	Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (Route, error)
	Name() string
}

// Geocoder resolves free-text addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Location, error)
}
