package trip

import (
	"fmt"

	"github.com/NERVsystems/ecoroute/pkg/emission"
)

// Candidate is an available observation together with its emission estimate.
type Candidate struct {
	Observation RouteObservation
	Estimate    emission.Estimate
}

// Mode returns the candidate's transport mode.
func (c Candidate) Mode() emission.Mode { return c.Observation.Mode }

// DistanceKm returns the observed distance.
func (c Candidate) DistanceKm() float64 { return c.Observation.Distance() }

// CandidateSet holds at most one candidate per mode.
type CandidateSet map[emission.Mode]Candidate

// BuildCandidates estimates every available observation. Unavailable
// observations are skipped.
func BuildCandidates(model *emission.Model, observations []RouteObservation) (CandidateSet, error) {
	set := make(CandidateSet, len(observations))
	for _, obs := range observations {
		if !obs.Available() {
			continue
		}
		est, err := model.Estimate(obs.Mode, *obs.DistanceKm)
		if err != nil {
			return nil, fmt.Errorf("estimating %s: %w", obs.Mode, err)
		}
		set[obs.Mode] = Candidate{Observation: obs, Estimate: est}
	}
	return set, nil
}

// Filter removes candidates whose distance lies outside the bounds of
// their mode in profile and returns the removed modes in priority order.
// Driving carries no bounds and is never removed.
func (s CandidateSet) Filter(profile emission.Profile) []emission.Mode {
	var dropped []emission.Mode
	for _, mode := range emission.Modes {
		c, ok := s[mode]
		if !ok {
			continue
		}
		bounds, known := profile.Mode(mode)
		if !known || bounds.Admits(c.DistanceKm()) {
			continue
		}
		delete(s, mode)
		dropped = append(dropped, mode)
	}
	return dropped
}

// Clone returns a shallow copy of the set.
func (s CandidateSet) Clone() CandidateSet {
	out := make(CandidateSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Ordered returns the candidates in priority order.
func (s CandidateSet) Ordered() []Candidate {
	out := make([]Candidate, 0, len(s))
	for _, mode := range emission.Modes {
		if c, ok := s[mode]; ok {
			out = append(out, c)
		}
	}
	return out
}
