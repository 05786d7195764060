package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

type stubDistances map[emission.Mode]float64

func (s stubDistances) Name() string { return "stub" }

func (s stubDistances) Distance(_ context.Context, _, _ geo.Location, mode emission.Mode) (provider.Route, error) {
	km, ok := s[mode]
	if !ok {
		if mode == emission.PublicTransport {
			return provider.Route{}, provider.ErrUnsupportedMode
		}
		return provider.Route{}, provider.ErrNoRoute
	}
	return provider.Route{DistanceKm: km}, nil
}

type stubResolver map[string]geo.Location

func (s stubResolver) Resolve(_ context.Context, input string) (geo.Location, error) {
	if loc, ok := s[input]; ok {
		return loc, nil
	}
	return geo.Location{}, fmt.Errorf("%w: %w", provider.ErrGeocoding, provider.ErrAddressNotFound)
}

var testPlaces = stubResolver{
	"Marienplatz": {Latitude: 48.1374, Longitude: 11.5755},
	"Odeonsplatz": {Latitude: 48.1425, Longitude: 11.5773},
}

func newTestRegistry(distances stubDistances) *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	planner := trip.NewPlanner(distances, testPlaces, emission.NewModel(emission.DefaultProfile()), trip.Options{Logger: logger})
	return NewRegistry(logger, planner, testPlaces)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	t.Fatal("result has no text content")
	return ""
}

// requireSuccess decodes a successful result into out.
func requireSuccess(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	text := resultText(t, result)
	require.False(t, result.IsError, text)
	require.NoError(t, json.Unmarshal([]byte(text), out))
}

// requireToolError checks that result is a coded error with the given code.
func requireToolError(t *testing.T, result *mcp.CallToolResult, code string) map[string]any {
	t.Helper()
	text := resultText(t, result)
	require.True(t, result.IsError, text)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &body))
	require.Equal(t, code, body["code"])
	return body
}
