package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// DefaultNominatimBaseURL is the public Nominatim instance.
const DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimClient geocodes addresses with Nominatim.
type NominatimClient struct {
	client  *Client
	baseURL string
	logger  *slog.Logger
}

// NewNominatimClient creates a Nominatim geocoder.
func NewNominatimClient(client *Client, baseURL string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimBaseURL
	}
	return &NominatimClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default().With("service", tracing.ServiceNominatim),
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Geocoder.
func (n *NominatimClient) Geocode(ctx context.Context, address string) (geo.Location, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	reqURL := fmt.Sprintf("%s/search?%s", n.baseURL, q.Encode())

	body, err := n.client.Get(ctx, tracing.ServiceNominatim, "geocode", reqURL)
	if err != nil {
		return geo.Location{}, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return geo.Location{}, core.Wrap(err, core.ErrParseError, "decoding Nominatim response")
	}
	if len(places) == 0 {
		return geo.Location{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}

	lat, latErr := strconv.ParseFloat(places[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(places[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return geo.Location{}, core.NewError(core.ErrParseError, "Nominatim returned malformed coordinates")
	}
	loc := geo.Location{Latitude: lat, Longitude: lon}
	if err := loc.Validate(); err != nil {
		return geo.Location{}, core.Wrap(err, core.ErrParseError, "geocoder returned invalid coordinates")
	}
	n.logger.Debug("geocoded", "address", address, "display_name", places[0].DisplayName, "location", loc.String())
	return loc, nil
}

// HealthCheck calls the status endpoint.
func (n *NominatimClient) HealthCheck(ctx context.Context) error {
	_, err := n.client.Get(ctx, tracing.ServiceNominatim, "health", n.baseURL+"/status")
	return err
}
