package emission

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ModeProfile holds the emission factor and feasibility bounds of one mode.
// Factors are kg CO2 per person-km. A nil bound means unbounded.
type ModeProfile struct {
	FactorMean    float64  `yaml:"factor_mean" json:"factor_mean"`
	FactorStdDev  float64  `yaml:"factor_stddev" json:"factor_stddev"`
	MinDistanceKm *float64 `yaml:"min_distance_km,omitempty" json:"min_distance_km,omitempty"`
	MaxDistanceKm *float64 `yaml:"max_distance_km,omitempty" json:"max_distance_km,omitempty"`
}

// Admits reports whether distanceKm lies within the mode's bounds.
// Both bounds are inclusive.
func (p ModeProfile) Admits(distanceKm float64) bool {
	if p.MinDistanceKm != nil && distanceKm < *p.MinDistanceKm {
		return false
	}
	if p.MaxDistanceKm != nil && distanceKm > *p.MaxDistanceKm {
		return false
	}
	return true
}

func (p ModeProfile) clone() ModeProfile {
	out := p
	if p.MinDistanceKm != nil {
		v := *p.MinDistanceKm
		out.MinDistanceKm = &v
	}
	if p.MaxDistanceKm != nil {
		v := *p.MaxDistanceKm
		out.MaxDistanceKm = &v
	}
	return out
}

func (p ModeProfile) validate(m Mode) error {
	if math.IsNaN(p.FactorMean) || math.IsInf(p.FactorMean, 0) || p.FactorMean < 0 {
		return fmt.Errorf("%s: factor_mean must be a non-negative number, got %v", m, p.FactorMean)
	}
	if math.IsNaN(p.FactorStdDev) || math.IsInf(p.FactorStdDev, 0) || p.FactorStdDev < 0 {
		return fmt.Errorf("%s: factor_stddev must be a non-negative number, got %v", m, p.FactorStdDev)
	}
	if p.MinDistanceKm != nil && *p.MinDistanceKm < 0 {
		return fmt.Errorf("%s: min_distance_km must not be negative", m)
	}
	if p.MaxDistanceKm != nil && *p.MaxDistanceKm < 0 {
		return fmt.Errorf("%s: max_distance_km must not be negative", m)
	}
	if m == Driving && (p.MinDistanceKm != nil || p.MaxDistanceKm != nil) {
		return fmt.Errorf("%s: driving is the reference mode and cannot be bounded", m)
	}
	if p.MinDistanceKm != nil && p.MaxDistanceKm != nil && *p.MinDistanceKm > *p.MaxDistanceKm {
		return fmt.Errorf("%s: min_distance_km exceeds max_distance_km", m)
	}
	return nil
}

// Profile is the read-only factor and threshold table used for a run.
// It is built once at startup and shared by every request.
type Profile struct {
	name  string
	modes map[Mode]ModeProfile
}

func km(v float64) *float64 { return &v }

// DefaultProfile returns the built-in factors and thresholds.
func DefaultProfile() Profile {
	return Profile{
		name: "default",
		modes: map[Mode]ModeProfile{
			Walking:         {FactorMean: 0, FactorStdDev: 0, MaxDistanceKm: km(2)},
			Cycling:         {FactorMean: 0, FactorStdDev: 0, MaxDistanceKm: km(5)},
			PublicTransport: {FactorMean: 0.041, FactorStdDev: 0.012, MinDistanceKm: km(2)},
			Driving:         {FactorMean: 0.192, FactorStdDev: 0.045},
		},
	}
}

// NewProfile builds a validated profile. Modes missing from entries keep
// their default values.
func NewProfile(name string, entries map[Mode]ModeProfile) (Profile, error) {
	p := DefaultProfile()
	if name != "" {
		p.name = name
	}
	for m, mp := range entries {
		if !m.Valid() {
			return Profile{}, fmt.Errorf("unknown transport mode %q", m)
		}
		p.modes[m] = mp.clone()
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

type profileFile struct {
	Name  string                 `yaml:"name"`
	Modes map[string]ModeProfile `yaml:"modes"`
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML profile.
func ParseProfile(data []byte) (Profile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	entries := make(map[Mode]ModeProfile, len(file.Modes))
	for token, mp := range file.Modes {
		m, err := ParseMode(token)
		if err != nil {
			return Profile{}, err
		}
		entries[m] = mp
	}
	return NewProfile(file.Name, entries)
}

// Validate checks every mode entry.
func (p Profile) Validate() error {
	for _, m := range Modes {
		mp, ok := p.modes[m]
		if !ok {
			return fmt.Errorf("profile %q has no entry for %s", p.name, m)
		}
		if err := mp.validate(m); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the profile name.
func (p Profile) Name() string { return p.name }

// Mode returns a copy of the entry for m.
func (p Profile) Mode(m Mode) (ModeProfile, bool) {
	mp, ok := p.modes[m]
	if !ok {
		return ModeProfile{}, false
	}
	return mp.clone(), true
}

// Entries returns a copy of the whole table.
func (p Profile) Entries() map[Mode]ModeProfile {
	out := make(map[Mode]ModeProfile, len(p.modes))
	for m, mp := range p.modes {
		out[m] = mp.clone()
	}
	return out
}
