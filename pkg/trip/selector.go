package trip

import (
	"encoding/json"
	"errors"

	"github.com/NERVsystems/ecoroute/pkg/emission"
)

// ErrNoFeasibleRoute means no mode survived lookup and filtering.
var ErrNoFeasibleRoute = errors.New("no feasible route")

// Comparison describes the chosen mode relative to driving.
type Comparison struct {
	CO2SavingsKg        float64 `json:"co2_savings_kg"`
	DistanceSavingsKm   float64 `json:"distance_savings_km"`
	PercentageReduction float64 `json:"percentage_co2_reduction"`
}

// Decision is the outcome of selecting among feasible candidates.
type Decision struct {
	BestMode       emission.Mode
	BestDistanceKm float64
	BestEmissionKg float64
	BestInterval   emission.Interval
	Comparison     *Comparison
	Approximated   bool
	Route          json.RawMessage
	Candidates     []Candidate
}

// Select returns the candidate with the lowest point emission. Equal
// emissions are resolved by mode priority. The comparison is computed
// against driving when it is known and emits more than zero.
func Select(set CandidateSet, driving *Candidate) (Decision, error) {
	ordered := set.Ordered()
	if len(ordered) == 0 {
		return Decision{}, ErrNoFeasibleRoute
	}

	best := ordered[0]
	for _, c := range ordered[1:] {
		// Strictly lower only; ordered is in priority order.
		if c.Estimate.PointKg < best.Estimate.PointKg {
			best = c
		}
	}

	return Decision{
		BestMode:       best.Mode(),
		BestDistanceKm: best.DistanceKm(),
		BestEmissionKg: best.Estimate.PointKg,
		BestInterval:   best.Estimate.Interval,
		Comparison:     compare(best, driving),
		Approximated:   best.Observation.Approximated,
		Route:          best.Observation.Raw,
		Candidates:     ordered,
	}, nil
}

func compare(best Candidate, driving *Candidate) *Comparison {
	if driving == nil || driving.Estimate.PointKg == 0 {
		return nil
	}
	savings := driving.Estimate.PointKg - best.Estimate.PointKg
	return &Comparison{
		CO2SavingsKg:        savings,
		DistanceSavingsKm:   driving.DistanceKm() - best.DistanceKm(),
		PercentageReduction: 100 * savings / driving.Estimate.PointKg,
	}
}
