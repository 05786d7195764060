// Package geo holds the coordinate types shared by the routing and planning packages.
package geo

import (
	"fmt"
	"math"
	"strconv"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// Location is a point in WGS84 decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ValidationError describes an out of range coordinate.
type ValidationError struct {
	Code     string
	Message  string
	Guidance string
}

func (e ValidationError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate checks that the location is within valid ranges.
func (l Location) Validate() error {
	return ValidateCoords(l.Latitude, l.Longitude)
}

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return ValidationError{
			Code:     "INVALID_LATITUDE",
			Message:  fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat),
			Guidance: "Ensure latitude is in decimal degrees",
		}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return ValidationError{
			Code:     "INVALID_LONGITUDE",
			Message:  fmt.Sprintf("Longitude must be between -180 and 180, got %f", lon),
			Guidance: "Ensure longitude is in decimal degrees",
		}
	}
	return nil
}

// LonLat formats the location as "lon,lat", the order routing services expect.
func (l Location) LonLat() string {
	return strconv.FormatFloat(l.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(l.Latitude, 'f', 6, 64)
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
}

// HaversineDistance returns the great-circle distance in meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// DistanceTo returns the great-circle distance to other in kilometers.
func (l Location) DistanceTo(other Location) float64 {
	return HaversineDistance(l.Latitude, l.Longitude, other.Latitude, other.Longitude) / 1000
}
