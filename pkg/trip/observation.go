// Package trip selects the lowest-emission feasible way to travel between
// two points and compares it against driving.
package trip

import (
	"encoding/json"

	"github.com/NERVsystems/ecoroute/pkg/emission"
)

// RouteObservation is what was learned about one mode for one request.
// A nil DistanceKm means no usable route was found.
type RouteObservation struct {
	Mode         emission.Mode   `json:"mode"`
	DistanceKm   *float64        `json:"distance_km"`
	Raw          json.RawMessage `json:"route,omitempty"`
	Approximated bool            `json:"approximated"`
}

// Observed returns an available observation.
func Observed(mode emission.Mode, distanceKm float64, raw json.RawMessage) RouteObservation {
	d := distanceKm
	return RouteObservation{Mode: mode, DistanceKm: &d, Raw: raw}
}

// Unavailable returns the observation of a mode without a route.
func Unavailable(mode emission.Mode) RouteObservation {
	return RouteObservation{Mode: mode}
}

// Available reports whether the observation carries a distance.
func (o RouteObservation) Available() bool {
	return o.DistanceKm != nil
}

// Distance returns the observed distance, or 0 when unavailable.
func (o RouteObservation) Distance() float64 {
	if o.DistanceKm == nil {
		return 0
	}
	return *o.DistanceKm
}
