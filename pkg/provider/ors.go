package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// DefaultORSBaseURL is the public OpenRouteService API.
const DefaultORSBaseURL = "https://api.openrouteservice.org"

// OpenRouteService error codes meaning "no route between these points".
var orsNoRouteCodes = map[int]bool{
	2004: true, // route distance exceeds the profile limit
	2009: true, // route could not be found
	2010: true, // point not found near a routable road
	2099: true, // unknown routing failure for these points
}

// ORSClient queries OpenRouteService directions and geocoding.
// Mode tokens are used unchanged as ORS profile names.
type ORSClient struct {
	client  *Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewORSClient creates an OpenRouteService client.
func NewORSClient(client *Client, baseURL, apiKey string) *ORSClient {
	if baseURL == "" {
		baseURL = DefaultORSBaseURL
	}
	return &ORSClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  slog.Default().With("service", tracing.ServiceORS),
	}
}

// Name identifies the backend.
func (o *ORSClient) Name() string { return tracing.ServiceORS }

// ORS omits summary members for zero-length routes.
type orsSummary struct {
	Distance *float64 `json:"distance"`
	Duration *float64 `json:"duration"`
}

type orsDirections struct {
	Routes []struct {
		Summary  orsSummary `json:"summary"`
		Geometry string     `json:"geometry"`
	} `json:"routes"`
	Features []struct {
		Properties struct {
			Summary orsSummary `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
	Error json.RawMessage `json:"error"`
}

type orsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// parseORSError decodes the error member, which is either an object or a string.
func parseORSError(raw json.RawMessage) (orsError, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return orsError{}, false
	}
	var e orsError
	if err := json.Unmarshal(raw, &e); err == nil {
		return e, true
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return orsError{Message: msg}, true
	}
	return orsError{Message: string(raw)}, true
}

// Distance implements DistanceProvider.
func (o *ORSClient) Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (Route, error) {
	if mode == emission.PublicTransport || !mode.Valid() {
		return Route{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}

	q := url.Values{}
	q.Set("api_key", o.apiKey)
	q.Set("start", from.LonLat())
	q.Set("end", to.LonLat())
	reqURL := fmt.Sprintf("%s/v2/directions/%s?%s", o.baseURL, url.PathEscape(string(mode)), q.Encode())

	body, err := o.client.Get(ctx, tracing.ServiceORS, "directions", reqURL)

	var result orsDirections
	if len(body) > 0 {
		if decodeErr := json.Unmarshal(body, &result); decodeErr != nil && err == nil {
			return Route{}, core.Wrap(decodeErr, core.ErrParseError, "decoding directions response")
		}
	}
	if e, ok := parseORSError(result.Error); ok {
		if orsNoRouteCodes[e.Code] || core.CodeOf(err) == core.ErrRouteNotFound {
			o.logger.Debug("no route", "mode", mode, "code", e.Code, "message", e.Message)
			return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, e.Message)
		}
		if err == nil {
			return Route{}, core.NewError(core.ErrServiceUnavailable, e.Message)
		}
	}
	if err != nil {
		if core.CodeOf(err) == core.ErrRouteNotFound {
			return Route{}, fmt.Errorf("%w: %s", ErrNoRoute, mode)
		}
		return Route{}, err
	}

	var km float64
	switch {
	case len(result.Routes) > 0:
		r := result.Routes[0]
		switch {
		case r.Summary.Distance != nil:
			km = *r.Summary.Distance / 1000
		case r.Geometry != "":
			points, err := geo.DecodePolyline(r.Geometry)
			if err != nil {
				return Route{}, core.Wrap(err, core.ErrParseError, "decoding route geometry")
			}
			km = geo.PathLength(points)
		}
	case len(result.Features) > 0:
		if d := result.Features[0].Properties.Summary.Distance; d != nil {
			km = *d / 1000
		}
	default:
		return Route{}, fmt.Errorf("%w: empty directions response for %s", ErrNoRoute, mode)
	}

	return Route{DistanceKm: km, Raw: json.RawMessage(body)}, nil
}

type orsGeocode struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode implements Geocoder using the Pelias search endpoint.
func (o *ORSClient) Geocode(ctx context.Context, address string) (geo.Location, error) {
	q := url.Values{}
	q.Set("api_key", o.apiKey)
	q.Set("text", address)
	q.Set("size", "1")
	reqURL := fmt.Sprintf("%s/geocode/search?%s", o.baseURL, q.Encode())

	body, err := o.client.Get(ctx, tracing.ServiceORS, "geocode", reqURL)
	if err != nil {
		return geo.Location{}, err
	}

	var result orsGeocode
	if err := json.Unmarshal(body, &result); err != nil {
		return geo.Location{}, core.Wrap(err, core.ErrParseError, "decoding geocode response")
	}
	if len(result.Features) == 0 || len(result.Features[0].Geometry.Coordinates) < 2 {
		return geo.Location{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}

	coords := result.Features[0].Geometry.Coordinates
	loc := geo.Location{Latitude: coords[1], Longitude: coords[0]}
	if err := loc.Validate(); err != nil {
		return geo.Location{}, core.Wrap(err, core.ErrParseError, "geocoder returned invalid coordinates")
	}
	o.logger.Debug("geocoded", "address", address, "label", result.Features[0].Properties.Label, "location", loc.String())
	return loc, nil
}

// HealthCheck reports whether the service answers at all.
func (o *ORSClient) HealthCheck(ctx context.Context) error {
	_, err := o.client.Get(ctx, tracing.ServiceORS, "health", o.baseURL+"/v2/health")
	var coded *core.Error
	if errors.As(err, &coded) && coded.Status > 0 && coded.Status < 500 {
		return nil
	}
	return err
}
