package trip

import (
	"math"

	"github.com/NERVsystems/ecoroute/pkg/emission"
)

const (
	// Beyond this driving distance transit is a flat 5% longer.
	longTripKm     = 50.0
	longTripFactor = 1.05

	// Logistic detour curve for shorter trips: up to 30% extra, centred
	// on 30 km.
	detourMax      = 0.3
	detourSlope    = 0.1
	detourMidpoint = 30.0
)

// ApproximateTransitDistance estimates the public transport distance for a
// trip whose driving distance is drivingKm.
func ApproximateTransitDistance(drivingKm float64) float64 {
	if drivingKm > longTripKm {
		return drivingKm * longTripFactor
	}
	scale := 1 + detourMax/(1+math.Exp(-detourSlope*(drivingKm-detourMidpoint)))
	return drivingKm * scale
}

// Approximator derives a public transport distance from a driving distance.
type Approximator func(drivingKm float64) float64

// TransitApproximator is the default curve.
var TransitApproximator Approximator = ApproximateTransitDistance

// Approximate turns a driving observation into a public transport one. An
// unavailable driving observation yields an unavailable result. The
// driving payload is carried over as the route.
func (a Approximator) Approximate(driving RouteObservation) RouteObservation {
	if !driving.Available() {
		return Unavailable(emission.PublicTransport)
	}
	if a == nil {
		a = ApproximateTransitDistance
	}
	obs := Observed(emission.PublicTransport, a(*driving.DistanceKm), driving.Raw)
	obs.Approximated = true
	return obs
}
