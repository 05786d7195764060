package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

const (
	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "ecoroute/0.1.0"

	maxResponseBytes = 10 << 20

	// significant rate limiter waits are reported to the hooks
	rateLimitReportThreshold = 100 * time.Millisecond
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the pooled client, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the shared HTTP client for all external services. It applies
// one rate limiter per service and sets the User-Agent header.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a pooled client with no rate limits configured.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: opts.Timeout,
		}
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		logger:     opts.Logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// SetRateLimit installs a limiter for service. A non-positive rps removes it.
func (c *Client) SetRateLimit(service string, rps float64, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		delete(c.limiters, service)
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.limiters[service] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (c *Client) limiter(service string) *rate.Limiter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limiters[service]
}

// UserAgent returns the User-Agent sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

func (c *Client) waitForRateLimit(ctx context.Context, service string) error {
	limiter := c.limiter(service)
	if limiter == nil || limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, service)),
	)

	err := limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	if waitDuration > rateLimitReportThreshold {
		hookRateLimit(service, waitDuration)
	}
	return err
}

// Get performs a single GET request and returns the body. Non-2xx answers
// return the body together with a *core.Error carrying the status code.
func (c *Client) Get(ctx context.Context, service, operation, rawURL string) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, service),
			attribute.String(tracing.AttrServiceOperation, operation),
			attribute.String(tracing.AttrServiceURL, redactURL(rawURL)),
		),
	)
	defer span.End()

	hookRequest(service, operation)

	if err := c.waitForRateLimit(ctx, service); err != nil {
		hookError(service, "rate_limit_wait_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit wait failed")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, core.Wrap(err, core.ErrInternalError, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/geo+json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		hookResponse(service, operation, duration, false)
		hookError(service, "request_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Warn("request failed", "service", service, "operation", operation, "url", redactURL(rawURL), "error", err)
		return nil, core.Wrap(err, core.ErrNetworkError, fmt.Sprintf("%s request failed", service))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	success := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	hookResponse(service, operation, duration, success)
	span.SetAttributes(tracing.ServiceAttributes(service, operation, redactURL(rawURL), resp.StatusCode)...)

	if err != nil {
		hookError(service, "read_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading body failed")
		return nil, core.Wrap(err, core.ErrNetworkError, fmt.Sprintf("reading %s response", service))
	}

	if !success {
		hookError(service, fmt.Sprintf("http_%d", resp.StatusCode))
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Debug("request returned error status",
			"service", service,
			"operation", operation,
			"status", resp.StatusCode,
			"url", redactURL(rawURL),
		)
		return body, core.ServiceError(service, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}

	span.SetStatus(codes.Ok, "")
	c.logger.Debug("request successful",
		"service", service,
		"operation", operation,
		"status", resp.StatusCode,
		"duration", duration,
	)
	return body, nil
}

// redactURL hides credentials carried in query parameters.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
