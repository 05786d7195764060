package geo

import (
	"errors"
	"math"
)

// ErrInvalidPolyline is returned for truncated or malformed polylines.
var ErrInvalidPolyline = errors.New("invalid polyline")

// EncodePolyline encodes points in the Google polyline format with five
// decimal places, the geometry encoding used by OpenRouteService.
func EncodePolyline(points []Location) string {
	if len(points) == 0 {
		return ""
	}

	out := make([]byte, 0, len(points)*12)
	prevLat, prevLon := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Latitude * 1e5))
		lon := int(math.Round(p.Longitude * 1e5))
		out = appendSigned(out, lat-prevLat)
		out = appendSigned(out, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(out)
}

// DecodePolyline decodes a Google polyline with five decimal places.
func DecodePolyline(polyline string) ([]Location, error) {
	points := make([]Location, 0, len(polyline)/8+1)
	index, lat, lon := 0, 0, 0
	for index < len(polyline) {
		var err error
		lat, index, err = decodeValue(polyline, index, lat)
		if err != nil {
			return nil, err
		}
		if index >= len(polyline) {
			return nil, ErrInvalidPolyline
		}
		lon, index, err = decodeValue(polyline, index, lon)
		if err != nil {
			return nil, err
		}
		points = append(points, Location{
			Latitude:  float64(lat) * 1e-5,
			Longitude: float64(lon) * 1e-5,
		})
	}
	return points, nil
}

// PathLength returns the great-circle length of the path in kilometres.
func PathLength(points []Location) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i-1].DistanceTo(points[i])
	}
	return total
}

func decodeValue(polyline string, index, prev int) (int, int, error) {
	result, shift := 0, 0
	for {
		if index >= len(polyline) {
			return 0, 0, ErrInvalidPolyline
		}
		b := int(polyline[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, 0, ErrInvalidPolyline
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	delta := (result >> 1) ^ (-(result & 1))
	return prev + delta, index, nil
}

func appendSigned(buf []byte, value int) []byte {
	s := value << 1
	if value < 0 {
		s = ^s
	}
	for s >= 0x20 {
		buf = append(buf, byte((0x20|(s&0x1f))+63))
		s >>= 5
	}
	return append(buf, byte(s+63))
}
