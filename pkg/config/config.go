// Package config loads ecoroute's runtime configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when CONFIG_PATH is unset and the file exists.
const DefaultConfigPath = "configs/ecoroute.yaml"

// Backends
const (
	BackendORS  = "ors"
	BackendOSRM = "osrm"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Provider     ProviderConfig     `yaml:"provider"`
	Retry        RetryConfig        `yaml:"retry"`
	Cache        CacheConfig        `yaml:"cache"`
	Planner      PlannerConfig      `yaml:"planner"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Registration RegistrationConfig `yaml:"registration"`
}

// HTTPConfig controls the API and MCP HTTP listener.
type HTTPConfig struct {
	Enabled        bool            `yaml:"enabled"`
	Address        string          `yaml:"address"`
	BaseURL        string          `yaml:"baseUrl"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"` // 0 keeps SSE streams open
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	MaxRequestSize int64           `yaml:"maxRequestSize"`
}

// RateLimitConfig drives the inbound per-IP limiter.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// ProviderConfig selects and configures the routing backend.
type ProviderConfig struct {
	Backend      string        `yaml:"backend"`
	ORSBaseURL   string        `yaml:"orsBaseUrl"`
	ORSAPIKey    string        `yaml:"orsApiKey"`
	OSRMBaseURL  string        `yaml:"osrmBaseUrl"`
	NominatimURL string        `yaml:"nominatimUrl"`
	UserAgent    string        `yaml:"userAgent"`
	Timeout      time.Duration `yaml:"timeout"`
	// RateLimits maps a service name to requests per second.
	RateLimits map[string]float64 `yaml:"rateLimits"`
}

// RetryConfig configures the fixed-delay retry around provider calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
}

// CacheConfig controls route and geocode caching.
type CacheConfig struct {
	RouteSize   int           `yaml:"routeSize"`
	RouteTTL    time.Duration `yaml:"routeTtl"`
	GeocodeSize int           `yaml:"geocodeSize"`
	GeocodeTTL  time.Duration `yaml:"geocodeTtl"`
	Valkey      ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig points at an optional shared route cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PlannerConfig tunes trip planning.
type PlannerConfig struct {
	ApproximateTransit bool          `yaml:"approximateTransit"`
	FactorsFile        string        `yaml:"factorsFile"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
}

// MonitoringConfig controls the metrics listener and health probes.
type MonitoringConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Address       string        `yaml:"address"`
	CheckInterval time.Duration `yaml:"checkInterval"`
}

// TracingConfig controls the OTLP exporter.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Environment string  `yaml:"environment"`
	SampleRatio float64 `yaml:"sampleRatio"`
	Insecure    bool    `yaml:"insecure"`
}

// RegistrationConfig announces the service to an external registry.
type RegistrationConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RegistryURL       string        `yaml:"registryUrl"`
	ServiceURL        string        `yaml:"serviceUrl"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the environment, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if err := loadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultConfigPath); err == nil {
		if err := hydrateFromFile(cfg, DefaultConfigPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports variables from path, or ./.env when path is empty.
// Variables already present in the environment win. A missing default
// file is not an error.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func envBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ECOROUTE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("ECOROUTE_BASE_URL"); v != "" {
		cfg.HTTP.BaseURL = v
	}
	if v := os.Getenv("ECOROUTE_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.HTTP.AllowedOrigins = origins
	}
	if v := os.Getenv("ECOROUTE_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = envBool(v)
	}
	if v := os.Getenv("ECOROUTE_RATE_LIMIT_RPS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RateLimit.RequestsPerSecond = parsed
		}
	}
	if v := os.Getenv("ECOROUTE_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("ECOROUTE_PROVIDER"); v != "" {
		cfg.Provider.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ORS_API_KEY"); v != "" {
		cfg.Provider.ORSAPIKey = v
	}
	if v := os.Getenv("ORS_BASE_URL"); v != "" {
		cfg.Provider.ORSBaseURL = v
	}
	if v := os.Getenv("OSRM_BASE_URL"); v != "" {
		cfg.Provider.OSRMBaseURL = v
	}
	if v := os.Getenv("NOMINATIM_BASE_URL"); v != "" {
		cfg.Provider.NominatimURL = v
	}
	if v := os.Getenv("ECOROUTE_USER_AGENT"); v != "" {
		cfg.Provider.UserAgent = v
	}
	if v := os.Getenv("ECOROUTE_PROVIDER_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Provider.Timeout = parsed
		}
	}
	if v := os.Getenv("ECOROUTE_RETRY_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("ECOROUTE_RETRY_DELAY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Delay = parsed
		}
	}
	if v := os.Getenv("ECOROUTE_ROUTE_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.RouteTTL = parsed
		}
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
		cfg.Cache.Valkey.Enabled = true
	}
	if v := os.Getenv("VALKEY_PREFIX"); v != "" {
		cfg.Cache.Valkey.Prefix = v
	}
	if v := os.Getenv("ECOROUTE_APPROXIMATE_TRANSIT"); v != "" {
		cfg.Planner.ApproximateTransit = envBool(v)
	}
	if v := os.Getenv("ECOROUTE_FACTORS_FILE"); v != "" {
		cfg.Planner.FactorsFile = v
	}
	if v := os.Getenv("ECOROUTE_METRICS_ADDR"); v != "" {
		cfg.Monitoring.Address = v
	}
	if v := os.Getenv("ECOROUTE_MONITORING_ENABLED"); v != "" {
		cfg.Monitoring.Enabled = envBool(v)
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Tracing.Environment = v
	}
	if v := os.Getenv("OTLP_INSECURE"); v != "" {
		cfg.Tracing.Insecure = envBool(v)
	}
	if v := os.Getenv("ECOROUTE_REGISTRY_URL"); v != "" {
		cfg.Registration.RegistryURL = v
		cfg.Registration.Enabled = true
	}
	if v := os.Getenv("ECOROUTE_SERVICE_URL"); v != "" {
		cfg.Registration.ServiceURL = v
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Enabled:      true,
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 10,
				Burst:             20,
			},
			MaxRequestSize: 1 << 20,
		},
		Provider: ProviderConfig{
			Backend:      BackendORS,
			ORSBaseURL:   "https://api.openrouteservice.org",
			OSRMBaseURL:  "https://router.project-osrm.org",
			NominatimURL: "https://nominatim.openstreetmap.org",
			UserAgent:    "ecoroute/0.1.0",
			Timeout:      30 * time.Second,
			RateLimits: map[string]float64{
				"openrouteservice": 5,
				"osrm":             1,
				"nominatim":        1,
			},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       time.Second,
		},
		Cache: CacheConfig{
			RouteSize:   256,
			RouteTTL:    24 * time.Hour,
			GeocodeSize: 1000,
			GeocodeTTL:  24 * time.Hour,
			Valkey: ValkeyConfig{
				Prefix: "ecoroute",
			},
		},
		Planner: PlannerConfig{
			ApproximateTransit: true,
			RequestTimeout:     45 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Enabled:       true,
			Address:       ":9090",
			CheckInterval: 30 * time.Second,
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
			Insecure:    true,
		},
		Registration: RegistrationConfig{
			HeartbeatInterval: 30 * time.Second,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Enabled && c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled && (c.HTTP.RateLimit.RequestsPerSecond <= 0 || c.HTTP.RateLimit.Burst <= 0) {
		return errors.New("http.rateLimit needs positive requestsPerSecond and burst")
	}
	switch c.Provider.Backend {
	case BackendORS:
		if c.Provider.ORSAPIKey == "" {
			return errors.New("provider.orsApiKey is required for the ors backend (set ORS_API_KEY)")
		}
		if c.Provider.ORSBaseURL == "" {
			return errors.New("provider.orsBaseUrl cannot be empty")
		}
	case BackendOSRM:
		if c.Provider.OSRMBaseURL == "" || c.Provider.NominatimURL == "" {
			return errors.New("provider.osrmBaseUrl and provider.nominatimUrl cannot be empty")
		}
	default:
		return fmt.Errorf("provider.backend must be %q or %q, got %q", BackendORS, BackendOSRM, c.Provider.Backend)
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be positive")
	}
	for service, rps := range c.Provider.RateLimits {
		if rps <= 0 {
			return fmt.Errorf("provider.rateLimits.%s must be positive", service)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.maxAttempts must be at least 1")
	}
	if c.Retry.Delay < 0 {
		return errors.New("retry.delay cannot be negative")
	}
	if c.Cache.RouteSize <= 0 || c.Cache.GeocodeSize <= 0 {
		return errors.New("cache sizes must be positive")
	}
	if c.Cache.RouteTTL <= 0 || c.Cache.GeocodeTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if c.Cache.Valkey.Enabled && c.Cache.Valkey.Addr == "" {
		return errors.New("cache.valkey.addr is required when valkey is enabled")
	}
	if c.Monitoring.Enabled && c.Monitoring.Address == "" {
		return errors.New("monitoring.address cannot be empty")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sampleRatio must be between 0 and 1")
	}
	if c.Registration.Enabled && c.Registration.RegistryURL == "" {
		return errors.New("registration.registryUrl is required when registration is enabled")
	}
	return nil
}
