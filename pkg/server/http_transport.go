package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string        `json:"addr"`
	BaseURL        string        `json:"base_url"`
	SSEEndpoint    string        `json:"sse_endpoint"`
	MsgEndpoint    string        `json:"msg_endpoint"`
	RateLimit      float64       `json:"rate_limit"` // requests per second per IP, 0 disables
	RateBurst      int           `json:"rate_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	MaxHeaderBytes int           `json:"max_header_bytes"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	TLSCertFile    string        `json:"tls_cert_file"`
	TLSKeyFile     string        `json:"tls_key_file"`
	ForceHTTPS     bool          `json:"force_https"`
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":8080",
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
		MaxHeaderBytes: 1 << 20,
		ReadTimeout:    30 * time.Second,
	}
}

// HTTPTransport serves the REST API and the MCP SSE transport on one port.
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	sseServer     *mcpserver.SSEServer
	api           http.Handler
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	mu            sync.RWMutex
}

// NewHTTPTransport creates the transport. api serves every path not
// claimed by MCP or health endpoints; it may be nil.
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, api http.Handler, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultHTTPTransportConfig()
	if config.SSEEndpoint == "" {
		config.SSEEndpoint = defaults.SSEEndpoint
	}
	if config.MsgEndpoint == "" {
		config.MsgEndpoint = defaults.MsgEndpoint
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = defaults.MaxRequestSize
	}
	if config.MaxHeaderBytes <= 0 {
		config.MaxHeaderBytes = defaults.MaxHeaderBytes
	}

	sseServer := mcpserver.NewSSEServer(
		mcpServer,
		mcpserver.WithSSEEndpoint(config.SSEEndpoint),
		mcpserver.WithMessageEndpoint(config.MsgEndpoint),
		mcpserver.WithBaseURL(config.BaseURL),
	)

	transport := &HTTPTransport{
		config:    config,
		logger:    logger,
		sseServer: sseServer,
		api:       api,
		mux:       http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		transport.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), burst, logger)
	}

	transport.setupRoutes()
	return transport
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.httpsEnforcement(t.handleRoot))

	t.mux.HandleFunc("/health", t.handleHealth)
	t.mux.HandleFunc("/ready", t.handleReady)
	t.mux.HandleFunc("/live", t.handleLive)

	sse := t.httpsEnforcement(t.sseServer.SSEHandler().ServeHTTP)
	msg := t.httpsEnforcement(t.sseServer.MessageHandler().ServeHTTP)
	t.mux.HandleFunc(t.config.SSEEndpoint, sse)
	t.mux.HandleFunc(t.config.SSEEndpoint+"/", sse)
	t.mux.HandleFunc(t.config.MsgEndpoint, msg)
	t.mux.HandleFunc(t.config.MsgEndpoint+"/", msg)
}

// httpsEnforcement redirects HTTP requests to HTTPS if ForceHTTPS is enabled
func (t *HTTPTransport) httpsEnforcement(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.config.ForceHTTPS && r.TLS == nil {
			httpsURL := "https://" + r.Host + r.URL.RequestURI()
			t.logger.Info("redirecting HTTP request to HTTPS",
				"client_ip", getIP(r),
				"redirect_url", httpsURL)
			http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
			return
		}
		next(w, r)
	}
}

// handleRoot answers service discovery on "/" and hands everything else
// to the API.
func (t *HTTPTransport) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		if t.api != nil {
			t.api.ServeHTTP(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"}, t.logger)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || t.config.ForceHTTPS || (t.config.TLSCertFile != "" && t.config.TLSKeyFile != "") {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	discovery := map[string]any{
		"service":   ServerName,
		"transport": "HTTP+SSE",
		"endpoints": map[string]string{
			"sse":       baseURL + t.config.SSEEndpoint,
			"message":   baseURL + t.config.MsgEndpoint,
			"get_route": baseURL + "/get-route",
			"estimate":  baseURL + "/estimate",
			"geocode":   baseURL + "/geocode",
			"factors":   baseURL + "/factors",
		},
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": true,
			"api":     t.api != nil,
		},
	}
	writeJSON(w, http.StatusOK, discovery, t.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (t *HTTPTransport) checker() *monitoring.HealthChecker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.healthChecker
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hc := t.checker(); hc != nil {
		hc.HealthHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"}, t.logger)
}

func (t *HTTPTransport) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hc := t.checker(); hc != nil {
		hc.ReadinessHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true, "status": "ok"}, t.logger)
}

func (t *HTTPTransport) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if hc := t.checker(); hc != nil {
		hc.LivenessHandler()(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alive": true}, t.logger)
}

// Handler returns the mux wrapped in the middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	if t.rateLimiter != nil {
		handler = t.rateLimiter.Middleware(handler)
	}
	handler = RequestSizeLimiter(t.config.MaxRequestSize)(handler)
	handler = SecurityHeaders(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = TracingMiddleware()(handler)
	return handler
}

// Start serves HTTP until Shutdown is called.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()

	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	t.httpSrv = &http.Server{
		Addr:           t.config.Addr,
		Handler:        t.Handler(),
		ReadTimeout:    t.config.ReadTimeout,
		WriteTimeout:   t.config.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	tls := t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"base_url", t.config.BaseURL,
		"api", t.api != nil,
		"rate_limit", t.config.RateLimit,
		"tls_enabled", tls,
		"force_https", t.config.ForceHTTPS)

	if tls {
		return srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	}
	if t.config.ForceHTTPS {
		t.mu.Lock()
		t.httpSrv = nil
		t.mu.Unlock()
		return core.NewError(core.ErrInvalidInput, "force_https requires tls_cert_file and tls_key_file").
			WithGuidance("Provide TLS certificates or disable HTTPS enforcement.")
	}
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown SSE server", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
