package core

import (
	"errors"
	"testing"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/mark3labs/mcp-go/mcp"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "test", Arguments: args}}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("publicTransport")
	if err != nil || mode != emission.PublicTransport {
		t.Fatalf("ParseMode(publicTransport) = %v, %v", mode, err)
	}

	_, err = ParseMode("hovercraft")
	if CodeOf(err) != ErrUnknownMode {
		t.Fatalf("expected UNKNOWN_MODE, got %v", err)
	}
	var coded *Error
	if !errors.As(err, &coded) || len(coded.Suggestions) != len(emission.Modes) {
		t.Errorf("expected one suggestion per mode, got %+v", coded)
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		code ErrorCode
	}{
		{"10", 10, ""},
		{" 2.5 ", 2.5, ""},
		{"0", 0, ""},
		{"", 0, ErrMissingParameter},
		{"ten", 0, ErrInvalidParameter},
		{"-1", 0, ErrInvalidParameter},
		{"NaN", 0, ErrInvalidParameter},
		{"50000", 0, ErrInvalidParameter},
	}
	for _, tt := range tests {
		got, err := ParseDistance(tt.raw)
		if CodeOf(err) != tt.code {
			t.Errorf("ParseDistance(%q): code %q, want %q", tt.raw, CodeOf(err), tt.code)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseDistance(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseEndpoints(t *testing.T) {
	origin, destination, err := ParseEndpoints(toolRequest(map[string]any{
		"origin":      " Berlin ",
		"destination": "Potsdam",
	}), "origin", "destination")
	if err != nil {
		t.Fatal(err)
	}
	if origin != "Berlin" || destination != "Potsdam" {
		t.Errorf("got %q -> %q", origin, destination)
	}

	_, _, err = ParseEndpoints(toolRequest(map[string]any{"origin": "Berlin"}), "origin", "destination")
	if CodeOf(err) != ErrMissingParameter {
		t.Errorf("expected MISSING_PARAMETER, got %v", err)
	}
}

func TestParseModeArg(t *testing.T) {
	_, ok, err := ParseModeArg(toolRequest(map[string]any{}), "mode")
	if ok || err != nil {
		t.Errorf("absent mode: ok=%v err=%v", ok, err)
	}

	mode, ok, err := ParseModeArg(toolRequest(map[string]any{"mode": "cycling-regular"}), "mode")
	if !ok || err != nil || mode != emission.Cycling {
		t.Errorf("cycling: mode=%v ok=%v err=%v", mode, ok, err)
	}

	_, _, err = ParseModeArg(toolRequest(map[string]any{"mode": "rocket"}), "mode")
	if CodeOf(err) != ErrUnknownMode {
		t.Errorf("expected UNKNOWN_MODE, got %v", err)
	}
}

func TestParseDistanceArg(t *testing.T) {
	km, err := ParseDistanceArg(toolRequest(map[string]any{"distance_km": 12.5}), "distance_km")
	if err != nil || km != 12.5 {
		t.Errorf("numeric: %v, %v", km, err)
	}

	km, err = ParseDistanceArg(toolRequest(map[string]any{"distance_km": "3"}), "distance_km")
	if err != nil || km != 3 {
		t.Errorf("string: %v, %v", km, err)
	}

	if _, err := ParseDistanceArg(toolRequest(map[string]any{}), "distance_km"); CodeOf(err) != ErrMissingParameter {
		t.Errorf("missing: %v", err)
	}
	if _, err := ParseDistanceArg(toolRequest(map[string]any{"distance_km": -4.0}), "distance_km"); CodeOf(err) != ErrInvalidParameter {
		t.Errorf("negative: %v", err)
	}
}
