// Package coords recognizes trip endpoints given as coordinates instead of
// addresses, so they can skip geocoding.
//
// Accepted notations:
//   - decimal degrees, latitude first: "52.5200, 13.4050"
//   - degrees minutes seconds: 52°31'12"N 13°24'18"E
//   - MGRS: "33UUU9188219061"
package coords

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/akhenakh/mgrs"
)

// Format is a coordinate notation.
type Format int

const (
	FormatUnknown Format = iota
	FormatDecimal
	FormatDMS
	FormatMGRS
)

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatDMS:
		return "dms"
	case FormatMGRS:
		return "mgrs"
	default:
		return "unknown"
	}
}

// ErrNotCoordinate means the input is not written in any accepted notation.
// Callers treat such input as an address.
var ErrNotCoordinate = errors.New("not a coordinate")

var (
	// zone 1-60, band C-X without I and O, 100 km square, even digit count
	mgrsPattern = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	dmsPattern = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	// comma separated, or whitespace separated with a fractional part on both
	// values so postcodes like "114 55" stay addresses
	decimalPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)$|^(-?\d+\.\d+)\s+(-?\d+\.\d+)$`)
)

// Detect returns the notation of input without converting it.
func Detect(input string) Format {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return FormatUnknown
	case mgrsPattern.MatchString(input):
		return FormatMGRS
	case dmsPattern.MatchString(input):
		return FormatDMS
	case decimalPattern.MatchString(input):
		return FormatDecimal
	default:
		return FormatUnknown
	}
}

// Parse converts input to a location. It returns ErrNotCoordinate when the
// input does not look like a coordinate, and a different error when it does
// but the values are invalid.
func Parse(input string) (geo.Location, Format, error) {
	input = strings.TrimSpace(input)

	var (
		loc geo.Location
		err error
	)
	format := Detect(input)
	switch format {
	case FormatMGRS:
		loc, err = parseMGRS(input)
	case FormatDMS:
		loc, err = parseDMS(input)
	case FormatDecimal:
		loc, err = parseDecimal(input)
	default:
		return geo.Location{}, FormatUnknown, ErrNotCoordinate
	}
	if err != nil {
		return geo.Location{}, format, err
	}
	if err := loc.Validate(); err != nil {
		return geo.Location{}, format, err
	}
	return loc, format, nil
}

func parseMGRS(input string) (geo.Location, error) {
	lat, lon, err := mgrs.MGRSToLatLng(strings.ToUpper(input))
	if err != nil {
		return geo.Location{}, fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}

func parseDMS(input string) (geo.Location, error) {
	m := dmsPattern.FindStringSubmatch(input)

	lat, err := dmsToDecimal(m[1], m[2], m[3], 90)
	if err != nil {
		return geo.Location{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := dmsToDecimal(m[5], m[6], m[7], 180)
	if err != nil {
		return geo.Location{}, fmt.Errorf("longitude: %w", err)
	}
	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lon = -lon
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}

func dmsToDecimal(degS, minS, secS string, maxDeg float64) (float64, error) {
	deg, _ := strconv.ParseFloat(degS, 64)
	min, _ := strconv.ParseFloat(minS, 64)
	sec, _ := strconv.ParseFloat(secS, 64)
	if deg > maxDeg || min >= 60 || sec >= 60 {
		return 0, fmt.Errorf("out of range: %s° %s' %s\"", degS, minS, secS)
	}
	return deg + min/60 + sec/3600, nil
}

func parseDecimal(input string) (geo.Location, error) {
	m := decimalPattern.FindStringSubmatch(input)
	latS, lonS := m[1], m[2]
	if latS == "" {
		latS, lonS = m[3], m[4]
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return geo.Location{}, fmt.Errorf("invalid latitude %q", latS)
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		return geo.Location{}, fmt.Errorf("invalid longitude %q", lonS)
	}
	return geo.Location{Latitude: lat, Longitude: lon}, nil
}

// ToMGRS formats a location as MGRS. Precision 1-5 selects 10 km down to 1 m.
func ToMGRS(loc geo.Location, precision int) (string, error) {
	if precision < 1 || precision > 5 {
		precision = 5
	}
	if err := loc.Validate(); err != nil {
		return "", err
	}
	s, err := mgrs.LatLngToMGRS(loc.Latitude, loc.Longitude, precision)
	if err != nil {
		return "", fmt.Errorf("MGRS conversion failed: %w", err)
	}
	return s, nil
}
