package emission

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Z975 is the standard normal quantile for a two-sided 95% interval.
	Z975 = 1.959964
	// SampleSize is the nominal sample count behind each factor.
	SampleSize = 30
)

// ErrInvalidDistance is returned for negative or non-finite distances.
var ErrInvalidDistance = errors.New("distance must be a finite, non-negative number of kilometres")

// Interval is a confidence interval in kg CO2.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 { return i.Upper - i.Lower }

// Estimate is the emission estimate for one mode and distance.
type Estimate struct {
	Mode       Mode     `json:"mode"`
	DistanceKm float64  `json:"distance_km"`
	PointKg    float64  `json:"co2_emissions_kg"`
	Interval   Interval `json:"confidence_interval"`
}

// Model turns distances into estimates using a Profile.
type Model struct {
	profile Profile
}

// NewModel returns a model over profile.
func NewModel(profile Profile) *Model {
	return &Model{profile: profile}
}

// Profile returns the profile the model reads.
func (m *Model) Profile() Profile { return m.profile }

// Estimate returns the point estimate and 95% interval for travelling
// distanceKm by mode. The half width is Z975 * (stddev * d) / sqrt(n).
func (m *Model) Estimate(mode Mode, distanceKm float64) (Estimate, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return Estimate{}, fmt.Errorf("%w: %v", ErrInvalidDistance, distanceKm)
	}
	mp, ok := m.profile.modes[mode]
	if !ok {
		return Estimate{}, fmt.Errorf("unknown transport mode %q", mode)
	}

	point := distanceKm * mp.FactorMean
	half := Z975 * (mp.FactorStdDev * distanceKm) / math.Sqrt(SampleSize)

	return Estimate{
		Mode:       mode,
		DistanceKm: distanceKm,
		PointKg:    point,
		Interval: Interval{
			Lower: point - half,
			Upper: point + half,
		},
	}, nil
}
