package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

func newTestTransport(t *testing.T, api http.Handler, mutate func(*HTTPTransportConfig)) *HTTPTransport {
	t.Helper()
	mcpSrv := mcpserver.NewMCPServer("test-server", "1.0.0")
	config := DefaultHTTPTransportConfig()
	config.Addr = ":0"
	config.RateLimit = 0
	if mutate != nil {
		mutate(&config)
	}
	transport := NewHTTPTransport(mcpSrv, api, config, discardLogger())
	t.Cleanup(func() { transport.Shutdown(context.Background()) })
	return transport
}

func TestHTTPTransport_ServiceDiscovery(t *testing.T) {
	transport := newTestTransport(t, http.NotFoundHandler(), func(c *HTTPTransportConfig) {
		c.BaseURL = "http://localhost:8080"
	})

	server := httptest.NewServer(transport.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var discovery struct {
		Service      string            `json:"service"`
		Transport    string            `json:"transport"`
		Endpoints    map[string]string `json:"endpoints"`
		Capabilities map[string]bool   `json:"capabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		t.Fatal(err)
	}

	if discovery.Service != ServerName {
		t.Errorf("expected service %q, got %q", ServerName, discovery.Service)
	}
	if got := discovery.Endpoints["sse"]; got != "http://localhost:8080/sse" {
		t.Errorf("unexpected sse endpoint %q", got)
	}
	if got := discovery.Endpoints["get_route"]; got != "http://localhost:8080/get-route" {
		t.Errorf("unexpected get_route endpoint %q", got)
	}
	if !discovery.Capabilities["api"] {
		t.Error("expected api capability")
	}
}

func TestHTTPTransport_APIFallthrough(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"path":"` + r.URL.Path + `","origin":"` + r.URL.Query().Get("origin") + `"}`))
	})
	transport := newTestTransport(t, api, nil)

	server := httptest.NewServer(transport.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/get-route?origin=Marienplatz&destination=Odeonsplatz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["path"] != "/get-route" || body["origin"] != "Marienplatz" {
		t.Errorf("api handler received %v", body)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected request id header on api responses")
	}
}

func TestHTTPTransport_NoAPIHandler(t *testing.T) {
	transport := newTestTransport(t, nil, nil)

	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get-route", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not found") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHTTPTransport_HealthEndpoints(t *testing.T) {
	transport := newTestTransport(t, nil, nil)

	for _, path := range []string{"/health", "/ready", "/live"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
		})
	}

	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /health, got %d", rec.Code)
	}
}

func TestHTTPTransport_HealthChecker(t *testing.T) {
	transport := newTestTransport(t, nil, nil)
	hc := monitoring.NewHealthChecker("ecoroute-test", "test")
	defer hc.Shutdown()
	hc.SetProfile("default")
	transport.SetHealthChecker(hc)

	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["service"] != "ecoroute-test" {
		t.Errorf("unexpected health body %v", health)
	}
}

func TestHTTPTransport_MessageEndpointRequiresSession(t *testing.T) {
	transport := newTestTransport(t, nil, nil)

	server := httptest.NewServer(transport.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/message", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
		t.Errorf("expected a session error from the message endpoint, got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_SSEEndpoint(t *testing.T) {
	transport := newTestTransport(t, nil, nil)

	server := httptest.NewServer(transport.Handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/sse", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("expected event stream, got %q", ct)
	}
}

func TestHTTPTransport_RateLimit(t *testing.T) {
	transport := newTestTransport(t, http.NotFoundHandler(), func(c *HTTPTransportConfig) {
		c.RateLimit = 1
		c.RateBurst = 1
	})
	handler := transport.Handler()

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestHTTPTransport_ForceHTTPSRedirect(t *testing.T) {
	transport := newTestTransport(t, nil, func(c *HTTPTransportConfig) {
		c.ForceHTTPS = true
	})

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"absolute form", "http://example.com/?x=1", "https://example.com/?x=1"},
		{"origin form", "/sse?session=abc", "https://example.com/sse?session=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.Host = "example.com"
			rec := httptest.NewRecorder()
			transport.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusMovedPermanently {
				t.Fatalf("expected 301, got %d", rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.want {
				t.Errorf("unexpected redirect %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestHTTPTransport_ForceHTTPSWithoutTLS(t *testing.T) {
	transport := newTestTransport(t, nil, func(c *HTTPTransportConfig) {
		c.ForceHTTPS = true
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Start()
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected error when ForceHTTPS is enabled without TLS certificates")
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("expected error but Start did not return in time")
	}
}

func TestHTTPTransport_Shutdown(t *testing.T) {
	transport := newTestTransport(t, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := transport.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Unexpected error from Start(): %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not stop within timeout")
	}
}
