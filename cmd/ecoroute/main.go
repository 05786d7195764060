package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/ecoroute/pkg/api"
	"github.com/NERVsystems/ecoroute/pkg/app"
	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/registration"
	"github.com/NERVsystems/ecoroute/pkg/server"
	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	ver "github.com/NERVsystems/ecoroute/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	logFormat       string
	configPath      string

	// Transport flags
	enableStdio bool
	httpOnly    bool
	httpAddr    string
	httpBaseURL string

	// Planner flags
	backend     string
	factorsFile string
	noTransit   bool

	// Monitoring flags
	monitoringAddr string
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file (overrides CONFIG_PATH)")

	flag.BoolVar(&enableStdio, "stdio", false, "Serve MCP over stdin/stdout")
	flag.BoolVar(&httpOnly, "http-only", false, "Skip stdio even when --stdio is set")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Public base URL for SSE endpoints (auto-detected if empty)")

	flag.StringVar(&backend, "provider", "", "Routing backend: ors or osrm (overrides config)")
	flag.StringVar(&factorsFile, "factors", "", "YAML file with emission factors and distance bounds")
	flag.BoolVar(&noTransit, "no-transit-approximation", false, "Leave public transport out unless the backend routes it")

	flag.StringVar(&monitoringAddr, "monitoring-addr", "", "Prometheus metrics address (overrides config)")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	logger := newLogger(debug, logFormat)
	slog.SetDefault(logger)

	// Load validates, so flags that change validation go through the env.
	if configPath != "" {
		os.Setenv("CONFIG_PATH", configPath)
	}
	if backend != "" {
		os.Setenv("ECOROUTE_PROVIDER", backend)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, ver.BuildVersion, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if cfg.Tracing.Endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	logger.Info("starting ecoroute",
		"version", ver.BuildVersion,
		"provider", cfg.Provider.Backend,
		"http_enabled", cfg.HTTP.Enabled,
		"http_addr", cfg.HTTP.Address,
		"stdio", enableStdio && !httpOnly,
		"monitoring_enabled", cfg.Monitoring.Enabled,
		"monitoring_addr", cfg.Monitoring.Address)

	if cfg.Monitoring.Enabled {
		provider.SetMonitoringHooks(&provider.MonitoringHooks{
			OnResponse: func(service, operation string, duration time.Duration, success bool) {
				monitoring.RecordExternalServiceRequest(service, operation, duration, success)
			},
			OnRateLimit: func(service string, waitTime time.Duration) {
				monitoring.RecordRateLimitWait(service, waitTime)
				monitoring.RecordRateLimitExceeded(service)
			},
			OnError: func(service, errorType string) {
				monitoring.RecordError(service, errorType)
			},
			OnCache: func(cacheType string, hit bool) {
				if hit {
					monitoring.RecordCacheHit(cacheType)
				} else {
					monitoring.RecordCacheMiss(cacheType)
				}
			},
			OnCacheSize: func(cacheType string, size int) {
				monitoring.UpdateCacheSize(cacheType, size)
			},
		})
	}

	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build planner", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	var healthChecker *monitoring.HealthChecker
	if cfg.Monitoring.Enabled {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
		healthChecker.SetProfile(stack.Model.Profile().Name())

		for _, m := range startConnectionMonitors(healthChecker, stack.Checks, cfg.Monitoring.CheckInterval) {
			defer m.Stop()
		}
		startMetricsServer(ctx, cfg.Monitoring.Address, logger)
	}

	registry := tools.NewRegistry(logger, stack.Planner, stack.Resolver)
	s, err := server.NewServer(registry, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if cfg.Registration.Enabled {
		serviceURL := cfg.Registration.ServiceURL
		if serviceURL == "" {
			serviceURL = cfg.HTTP.BaseURL
		}
		regClient := registration.NewClient(registration.Config{
			RegistryURL:       cfg.Registration.RegistryURL,
			ServiceName:       server.ServerName,
			ServiceURL:        serviceURL,
			Version:           ver.BuildVersion,
			Tools:             registry.GetToolNames(),
			Capabilities:      []string{"routing", "geocoding", "emissions"},
			HeartbeatInterval: cfg.Registration.HeartbeatInterval,
			Metadata: map[string]any{
				"provider": cfg.Provider.Backend,
				"profile":  stack.Model.Profile().Name(),
			},
		}, logger)
		regClient.Start(ctx)
		defer regClient.Stop()
	}

	if cfg.HTTP.Enabled {
		handler := api.NewHandler(stack.Planner, stack.Resolver, logger)
		router := api.NewRouter(api.RouterConfig{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RequestTimeout: cfg.Planner.RequestTimeout,
		}, handler)

		transportConfig := server.HTTPTransportConfig{
			Addr:           cfg.HTTP.Address,
			BaseURL:        cfg.HTTP.BaseURL,
			ReadTimeout:    cfg.HTTP.ReadTimeout,
			WriteTimeout:   cfg.HTTP.WriteTimeout,
			MaxRequestSize: cfg.HTTP.MaxRequestSize,
		}
		if cfg.HTTP.RateLimit.Enabled {
			transportConfig.RateLimit = cfg.HTTP.RateLimit.RequestsPerSecond
			transportConfig.RateBurst = cfg.HTTP.RateLimit.Burst
		}

		httpTransport := server.NewHTTPTransport(s.GetMCPServer(), router, transportConfig, logger)
		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
		}

		go func() {
			if err := httpTransport.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP transport error", "error", err)
				stop()
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := httpTransport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()
	}

	// Transport startup:
	// - stdio without HTTP: run stdio on the main goroutine
	// - stdio with HTTP: run stdio in the background and wait for a signal
	// - HTTP only: wait for a signal
	switch {
	case enableStdio && !httpOnly && !cfg.HTTP.Enabled:
		logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
		if err := s.RunWithContext(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case enableStdio && !httpOnly:
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				logger.Error("stdio transport error", "error", err)
			}
		}()
		logger.Info("server_ready", "transports", []string{"stdio", "http"})
		<-ctx.Done()
		logger.Info("shutdown signal received")
	case cfg.HTTP.Enabled:
		logger.Info("server_ready", "transports", []string{"http"})
		<-ctx.Done()
		logger.Info("shutdown signal received")
	default:
		logger.Error("no transport enabled: set http.enabled or pass --stdio")
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(debug bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	// stdout carries the MCP stdio stream, so logs always go to stderr.
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// applyFlags lets explicit command line flags win over file and env config.
func applyFlags(cfg *config.Config) {
	if httpAddr != "" {
		cfg.HTTP.Address = httpAddr
	}
	if httpBaseURL != "" {
		cfg.HTTP.BaseURL = httpBaseURL
	}
	if httpOnly {
		cfg.HTTP.Enabled = true
	}
	if factorsFile != "" {
		cfg.Planner.FactorsFile = factorsFile
	}
	if noTransit {
		cfg.Planner.ApproximateTransit = false
	}
	if monitoringAddr != "" {
		cfg.Monitoring.Address = monitoringAddr
	}
}

func startConnectionMonitors(hc *monitoring.HealthChecker, checks map[string]app.HealthCheck, interval time.Duration) []*monitoring.ConnectionMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	monitors := make([]*monitoring.ConnectionMonitor, 0, len(checks))
	for name, check := range checks {
		m := monitoring.NewConnectionMonitor(name, hc, monitoring.CheckFunc(check), interval)
		m.Start()
		monitors = append(monitors, m)
	}
	return monitors
}

func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	monitoringServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", addr)
		if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
	}()
}
