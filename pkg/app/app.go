// Package app assembles the trip planner and its collaborators from
// configuration. Both the server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// HealthCheck probes one external dependency.
type HealthCheck func(ctx context.Context) error

// App holds the wired planning stack.
type App struct {
	Config   *config.Config
	Model    *emission.Model
	Planner  *trip.Planner
	Resolver *provider.Resolver
	// Checks maps service names to health probes for the monitors.
	Checks map[string]HealthCheck

	logger  *slog.Logger
	closers []func()
}

// New builds the planning stack described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "app")

	profile, err := provideProfile(cfg)
	if err != nil {
		return nil, err
	}
	model := emission.NewModel(profile)

	client := provideClient(cfg, logger)
	retry := core.FixedRetryOptions(cfg.Retry.MaxAttempts, cfg.Retry.Delay)

	a := &App{
		Config: cfg,
		Model:  model,
		Checks: make(map[string]HealthCheck),
		logger: logger,
	}

	var (
		distances provider.DistanceProvider
		geocoder  provider.Geocoder
	)
	switch cfg.Provider.Backend {
	case config.BackendORS:
		ors := provider.NewORSClient(client, cfg.Provider.ORSBaseURL, cfg.Provider.ORSAPIKey)
		distances, geocoder = ors, ors
		a.Checks[tracing.ServiceORS] = ors.HealthCheck
	case config.BackendOSRM:
		options := provider.DefaultOSRMOptions()
		if cfg.Provider.OSRMBaseURL != "" {
			options.BaseURL = cfg.Provider.OSRMBaseURL
		}
		osrm := provider.NewOSRMClient(client, options)
		nominatim := provider.NewNominatimClient(client, cfg.Provider.NominatimURL)
		distances, geocoder = osrm, nominatim
		a.Checks[tracing.ServiceOSRM] = osrm.HealthCheck
		a.Checks[tracing.ServiceNominatim] = nominatim.HealthCheck
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Provider.Backend)
	}

	shared := a.provideSharedStore(ctx, cfg)
	distances = provider.WithCache(provider.WithRetry(distances, retry), cfg.Cache.RouteSize, cfg.Cache.RouteTTL, shared)

	a.Resolver = provider.NewResolver(provider.WithGeocoderRetry(geocoder, retry), cfg.Cache.GeocodeTTL, cfg.Cache.GeocodeSize)
	a.closers = append(a.closers, a.Resolver.Close)

	a.Planner = trip.NewPlanner(distances, a.Resolver, model, trip.Options{
		DisableTransitApproximation: !cfg.Planner.ApproximateTransit,
		Logger:                      logger.With("component", "planner"),
	})

	logger.Info("planning stack ready",
		"backend", cfg.Provider.Backend,
		"distance_provider", distances.Name(),
		"profile", profile.Name(),
		"approximate_transit", cfg.Planner.ApproximateTransit,
		"retry_attempts", cfg.Retry.MaxAttempts,
		"retry_delay", cfg.Retry.Delay,
		"shared_cache", shared != nil)

	return a, nil
}

// Close releases caches and connections. It is safe to call once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func provideProfile(cfg *config.Config) (emission.Profile, error) {
	path := strings.TrimSpace(cfg.Planner.FactorsFile)
	if path == "" {
		return emission.DefaultProfile(), nil
	}
	profile, err := emission.LoadProfile(path)
	if err != nil {
		return emission.Profile{}, fmt.Errorf("load emission factors: %w", err)
	}
	return profile, nil
}

func provideClient(cfg *config.Config, logger *slog.Logger) *provider.Client {
	client := provider.NewClient(provider.ClientOptions{
		Timeout:   cfg.Provider.Timeout,
		UserAgent: cfg.Provider.UserAgent,
		Logger:    logger.With("component", "http_client"),
	})
	for service, rps := range cfg.Provider.RateLimits {
		client.SetRateLimit(service, rps, 1)
	}
	return client
}

// provideSharedStore dials Valkey when configured. A failed dial leaves the
// planner on its in-process cache only.
func (a *App) provideSharedStore(ctx context.Context, cfg *config.Config) provider.Store {
	vc := cfg.Cache.Valkey
	if !vc.Enabled || strings.TrimSpace(vc.Addr) == "" {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := provider.DialValkey(dialCtx, vc.Addr)
	if err != nil {
		a.logger.Error("valkey unavailable, using in-process route cache only", "addr", vc.Addr, "error", err)
		return nil
	}
	a.closers = append(a.closers, client.Close)
	a.Checks["valkey"] = func(ctx context.Context) error {
		return client.Do(ctx, client.B().Ping().Build()).Error()
	}
	a.logger.Info("shared route cache enabled", "addr", vc.Addr, "prefix", vc.Prefix)
	return provider.NewValkeyStore(client, vc.Prefix)
}
