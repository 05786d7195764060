package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

type stubDistances struct {
	km    map[emission.Mode]float64
	delay time.Duration
}

func (s stubDistances) Name() string { return "stub" }

func (s stubDistances) Distance(ctx context.Context, _, _ geo.Location, mode emission.Mode) (provider.Route, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return provider.Route{}, ctx.Err()
		}
	}
	km, ok := s.km[mode]
	if !ok {
		if mode == emission.PublicTransport {
			return provider.Route{}, provider.ErrUnsupportedMode
		}
		return provider.Route{}, provider.ErrNoRoute
	}
	return provider.Route{DistanceKm: km, Raw: json.RawMessage(`{"summary":{}}`)}, nil
}

type stubResolver map[string]geo.Location

func (s stubResolver) Resolve(_ context.Context, input string) (geo.Location, error) {
	if loc, ok := s[input]; ok {
		return loc, nil
	}
	return geo.Location{}, fmt.Errorf("%w: %w", provider.ErrGeocoding, provider.ErrAddressNotFound)
}

var places = stubResolver{
	"Alexanderplatz":   {Latitude: 52.5219, Longitude: 13.4132},
	"Hackescher Markt": {Latitude: 52.5225, Longitude: 13.4020},
}

func newTestRouter(t *testing.T, distances stubDistances, cfg RouterConfig) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	planner := trip.NewPlanner(distances, places, emission.NewModel(emission.DefaultProfile()), trip.Options{Logger: logger})
	return NewRouter(cfg, NewHandler(planner, places, logger))
}

func performRequest(h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func routeQuery(origin, destination, mode string) string {
	v := url.Values{}
	v.Set("origin", origin)
	v.Set("destination", destination)
	if mode != "" {
		v.Set("mode", mode)
	}
	return "/get-route?" + v.Encode()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var shortTrip = stubDistances{km: map[emission.Mode]float64{
	emission.Walking: 4,
	emission.Cycling: 4,
	emission.Driving: 4,
}}

func TestGetRouteMissingParameters(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	for _, path := range []string{"/get-route", "/get-route?origin=Alexanderplatz", "/get-route?destination=x&origin=%20"} {
		rec := performRequest(router, http.MethodGet, path, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		require.Equal(t, map[string]any{"error": "Missing origin or destination"}, decode(t, rec))
	}
}

func TestGetRouteInvalidAddress(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, routeQuery("Nowhere", "Alexanderplatz", ""), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, map[string]any{"error": "Invalid address"}, decode(t, rec))
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(context.Context, string) (geo.Location, error) {
	return geo.Location{}, fmt.Errorf("%w: %w", provider.ErrGeocoding, f.err)
}

func TestGeocoderOutageIsNotBlamedOnInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := failingResolver{err: core.ServiceError("openrouteservice", http.StatusServiceUnavailable, "busy")}
	planner := trip.NewPlanner(shortTrip, resolver, emission.NewModel(emission.DefaultProfile()), trip.Options{Logger: logger})
	router := NewRouter(RouterConfig{}, NewHandler(planner, resolver, logger))

	rec := performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", ""), nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, map[string]any{"error": "Geocoding service unavailable"}, decode(t, rec))

	rec = performRequest(router, http.MethodGet, "/geocode?address=Alexanderplatz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClassify(t *testing.T) {
	geocoding := func(cause error) error { return fmt.Errorf("%w: %w", provider.ErrGeocoding, cause) }

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"address not found", geocoding(provider.ErrAddressNotFound), http.StatusBadRequest, "Invalid address"},
		{"bad coordinates", geocoding(core.NewError(core.ErrInvalidParameter, "invalid coordinates")), http.StatusBadRequest, "Invalid address"},
		{"geocoder 503", geocoding(core.ServiceError("openrouteservice", 503, "busy")), http.StatusServiceUnavailable, "Geocoding service unavailable"},
		{"geocoder network error", geocoding(core.NewError(core.ErrNetworkError, "connection refused")), http.StatusServiceUnavailable, "Geocoding service unavailable"},
		{"geocoder rejected key", geocoding(core.ServiceError("openrouteservice", 401, "bad key")), http.StatusBadGateway, "Geocoding service unavailable"},
		{"timeout", fmt.Errorf("plan: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "Request timed out"},
		{"client went away", fmt.Errorf("plan: %w", context.Canceled), statusClientClosedRequest, "Request canceled"},
		{"no route", trip.ErrNoFeasibleRoute, http.StatusNotFound, "No route found"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			require.Equal(t, tt.status, got.Status)
			require.Equal(t, tt.msg, got.Message)
		})
	}
}

func TestGetRouteBestMode(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report trip.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, emission.Cycling, report.BestMode)
	require.Equal(t, 4.0, report.DistanceKm)
	require.Equal(t, 0.0, report.CO2EmissionsKg)
	require.NotNil(t, report.ComparisonToDriving)
	require.Equal(t, 0.768, report.ComparisonToDriving.CO2SavingsKg)
	require.Equal(t, 0.0, report.ComparisonToDriving.DistanceSavingsKm)
	require.Equal(t, 100.0, report.ComparisonToDriving.PercentageReduction)
	require.False(t, report.Approximated)

	modes := make([]emission.Mode, 0, len(report.Candidates))
	for _, c := range report.Candidates {
		modes = append(modes, c.Mode)
	}
	// walking exceeds its 2 km bound
	require.Equal(t, []emission.Mode{emission.Cycling, emission.PublicTransport, emission.Driving}, modes)
}

func TestGetRouteNoRoute(t *testing.T) {
	router := newTestRouter(t, stubDistances{}, RouterConfig{})

	rec := performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", ""), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, map[string]any{"error": "No route found"}, decode(t, rec))
}

func TestGetRouteSingleMode(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", "driving-car"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report trip.ModeReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, emission.Driving, report.Mode)
	require.Equal(t, 4.0, report.DistanceKm)
	require.Equal(t, 0.768, report.CO2EmissionsKg)
	require.True(t, report.Feasible)
	require.JSONEq(t, `{"summary":{}}`, string(report.Route))
}

func TestGetRouteSingleModeErrors(t *testing.T) {
	router := newTestRouter(t, stubDistances{km: map[emission.Mode]float64{emission.Driving: 4}}, RouterConfig{})

	rec := performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", "hovercraft"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode(t, rec)["error"], "unknown transport mode")

	rec = performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", "foot-walking"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, map[string]any{"error": "No route found"}, decode(t, rec))
}

func TestGetRouteTimeout(t *testing.T) {
	slow := shortTrip
	slow.delay = time.Second
	router := newTestRouter(t, slow, RouterConfig{RequestTimeout: 20 * time.Millisecond})

	rec := performRequest(router, http.MethodGet, routeQuery("Alexanderplatz", "Hackescher Markt", ""), nil)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.Equal(t, map[string]any{"error": "Request timed out"}, decode(t, rec))
}

func TestEstimate(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, "/estimate?mode=driving-car&distance_km=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EstimateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, emission.Driving, resp.Mode)
	require.Equal(t, 1.92, resp.CO2EmissionsKg)
	require.Equal(t, 1.759, resp.ConfidenceInterval.Lower)
	require.Equal(t, 2.081, resp.ConfidenceInterval.Upper)
	require.True(t, resp.Feasible)

	rec = performRequest(router, http.MethodGet, "/estimate?mode=foot-walking&distance_km=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Feasible)
}

func TestEstimateRejectsBadInput(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	tests := []struct {
		path string
		want string
	}{
		{"/estimate?distance_km=10", "unknown transport mode"},
		{"/estimate?mode=driving-car", "distance_km is required"},
		{"/estimate?mode=driving-car&distance_km=abc", "is not a number"},
		{"/estimate?mode=driving-car&distance_km=-1", "non-negative"},
	}
	for _, tt := range tests {
		rec := performRequest(router, http.MethodGet, tt.path, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, tt.path)
		require.Contains(t, decode(t, rec)["error"], tt.want, tt.path)
	}
}

func TestGeocode(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, "/geocode?address=Alexanderplatz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp GeocodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, places["Alexanderplatz"], resp.Location)
	require.True(t, strings.HasPrefix(resp.MGRS, "33U"), resp.MGRS)

	rec = performRequest(router, http.MethodGet, "/geocode?address=Atlantis", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, map[string]any{"error": "Invalid address"}, decode(t, rec))

	rec = performRequest(router, http.MethodGet, "/geocode", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactorsAndVersion(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, "/factors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var factors FactorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &factors))
	require.Equal(t, "default", factors.Profile)
	require.Equal(t, 0.192, factors.Modes[emission.Driving].FactorMean)
	require.Equal(t, emission.Modes, factors.Order)

	rec = performRequest(router, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), "version")
}

func TestUnknownPath(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{})

	rec := performRequest(router, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, map[string]any{"error": "Not found"}, decode(t, rec))
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t, shortTrip, RouterConfig{AllowedOrigins: []string{"https://app.example.org"}})

	rec := performRequest(router, http.MethodOptions, "/get-route", map[string]string{"Origin": "https://app.example.org"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = performRequest(router, http.MethodGet, "/version", map[string]string{"Origin": "https://evil.example"})
	require.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestResolveOrigin(t *testing.T) {
	require.Equal(t, "*", resolveOrigin("https://a.test", nil))
	require.Equal(t, "*", resolveOrigin("https://a.test", []string{"https://b.test", "*"}))
	require.Equal(t, "https://A.test", resolveOrigin("https://A.test", []string{"https://a.test"}))
	require.Equal(t, "https://b.test", resolveOrigin("", []string{"https://b.test"}))
}
