package trip

import (
	"encoding/json"
	"math"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
)

// Round3 rounds to three decimals, the precision of every reported figure.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// IntervalReport is a rounded confidence interval.
type IntervalReport struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// CandidateReport describes one feasible mode.
type CandidateReport struct {
	Mode               emission.Mode  `json:"mode"`
	DistanceKm         float64        `json:"distance_km"`
	CO2EmissionsKg     float64        `json:"co2_emissions_kg"`
	ConfidenceInterval IntervalReport `json:"confidence_interval"`
	Approximated       bool           `json:"approximated"`
}

// Report is the JSON body of a planned trip.
type Report struct {
	Origin              geo.Location      `json:"origin"`
	Destination         geo.Location      `json:"destination"`
	StraightLineKm      float64           `json:"straight_line_km"`
	BestMode            emission.Mode     `json:"best_mode"`
	DistanceKm          float64           `json:"distance_km"`
	CO2EmissionsKg      float64           `json:"co2_emissions_kg"`
	ConfidenceInterval  IntervalReport    `json:"confidence_interval"`
	ComparisonToDriving *Comparison       `json:"comparison_to_driving"`
	Approximated        bool              `json:"approximated"`
	Candidates          []CandidateReport `json:"candidates"`
	Route               json.RawMessage   `json:"route,omitempty"`
}

// ModeReport is the JSON body of a single-mode evaluation.
type ModeReport struct {
	Mode               emission.Mode   `json:"mode"`
	DistanceKm         float64         `json:"distance_km"`
	CO2EmissionsKg     float64         `json:"co2_emissions_kg"`
	ConfidenceInterval IntervalReport  `json:"confidence_interval"`
	Approximated       bool            `json:"approximated"`
	Feasible           bool            `json:"feasible"`
	Route              json.RawMessage `json:"route,omitempty"`
}

func roundInterval(i emission.Interval) IntervalReport {
	return IntervalReport{Lower: Round3(i.Lower), Upper: Round3(i.Upper)}
}

func candidateReport(c Candidate) CandidateReport {
	return CandidateReport{
		Mode:               c.Mode(),
		DistanceKm:         Round3(c.DistanceKm()),
		CO2EmissionsKg:     Round3(c.Estimate.PointKg),
		ConfidenceInterval: roundInterval(c.Estimate.Interval),
		Approximated:       c.Observation.Approximated,
	}
}

// NewReport renders a planning result with every figure rounded.
func NewReport(res Result) Report {
	d := res.Decision
	r := Report{
		Origin:             res.Origin,
		Destination:        res.Destination,
		StraightLineKm:     Round3(res.Origin.DistanceTo(res.Destination)),
		BestMode:           d.BestMode,
		DistanceKm:         Round3(d.BestDistanceKm),
		CO2EmissionsKg:     Round3(d.BestEmissionKg),
		ConfidenceInterval: roundInterval(d.BestInterval),
		Approximated:       d.Approximated,
		Candidates:         make([]CandidateReport, 0, len(d.Candidates)),
		Route:              d.Route,
	}
	if d.Comparison != nil {
		r.ComparisonToDriving = &Comparison{
			CO2SavingsKg:        Round3(d.Comparison.CO2SavingsKg),
			DistanceSavingsKm:   Round3(d.Comparison.DistanceSavingsKm),
			PercentageReduction: Round3(d.Comparison.PercentageReduction),
		}
	}
	for _, c := range d.Candidates {
		r.Candidates = append(r.Candidates, candidateReport(c))
	}
	return r
}

// NewModeReport renders a single-mode evaluation.
func NewModeReport(e Evaluation) ModeReport {
	c := candidateReport(e.Candidate)
	return ModeReport{
		Mode:               c.Mode,
		DistanceKm:         c.DistanceKm,
		CO2EmissionsKg:     c.CO2EmissionsKg,
		ConfidenceInterval: c.ConfidenceInterval,
		Approximated:       c.Approximated,
		Feasible:           e.Feasible,
		Route:              e.Candidate.Observation.Raw,
	}
}
