// Package emission converts travelled distance into CO2 estimates with
// confidence bounds, per transport mode.
package emission

import (
	"fmt"
	"strings"
)

// Mode is a transport mode, identified by its interface token.
// The tokens match OpenRouteService profile names so they can be passed
// through to the routing provider unchanged.
type Mode string

// Recognized modes
const (
	Walking         Mode = "foot-walking"
	Cycling         Mode = "cycling-regular"
	PublicTransport Mode = "publicTransport"
	Driving         Mode = "driving-car"
)

// Modes lists every mode in priority order. Earlier modes win ties
// when two candidates have equal emissions.
var Modes = []Mode{Walking, Cycling, PublicTransport, Driving}

// ParseMode returns the mode for an interface token.
func ParseMode(token string) (Mode, error) {
	m := Mode(strings.TrimSpace(token))
	if !m.Valid() {
		return "", fmt.Errorf("unknown transport mode %q", token)
	}
	return m, nil
}

// Valid reports whether m is one of the recognized modes.
func (m Mode) Valid() bool {
	return m.Priority() >= 0
}

// Priority returns the tie-break rank of m, or -1 for unknown modes.
func (m Mode) Priority() int {
	for i, candidate := range Modes {
		if candidate == m {
			return i
		}
	}
	return -1
}

func (m Mode) String() string {
	return string(m)
}

// Label is the human readable name of the mode.
func (m Mode) Label() string {
	switch m {
	case Walking:
		return "walking"
	case Cycling:
		return "cycling"
	case PublicTransport:
		return "public transport"
	case Driving:
		return "driving"
	default:
		return string(m)
	}
}
