// Package registration announces ecoroute to a service registry and keeps
// the entry alive with periodic heartbeats. A missing or failing registry
// never affects trip planning.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

const (
	// DefaultHeartbeatInterval is how often the entry is refreshed.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultTimeout bounds each registry request.
	DefaultTimeout = 5 * time.Second
)

// Config describes the registry and how ecoroute presents itself there.
type Config struct {
	RegistryURL       string
	ServiceName       string
	ServiceURL        string
	Version           string
	Tools             []string
	Capabilities      []string
	Metadata          map[string]any
	HeartbeatInterval time.Duration
	Timeout           time.Duration
}

// Announcement is the body posted to the registry.
type Announcement struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	URL          string            `json:"url"`
	HealthURL    string            `json:"health_url"`
	Version      string            `json:"version"`
	Endpoints    map[string]string `json:"endpoints"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Tools        []string          `json:"tools,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

// Ack is the registry's answer to an announcement.
type Ack struct {
	Status          string    `json:"status"`
	Name            string    `json:"name"`
	TTLSeconds      int       `json:"ttl_seconds"`
	NextHeartbeatBy time.Time `json:"next_heartbeat_by"`
}

// Client registers the service and sends heartbeats until stopped.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	mu         sync.Mutex
	registered bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewClient creates a registration client for cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ecoroute"
	}
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		logger:     logger.With("component", "registration"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) announcement() Announcement {
	base := c.cfg.ServiceURL
	return Announcement{
		Name:      c.cfg.ServiceName,
		Type:      "mcp",
		URL:       base,
		HealthURL: base + "/health",
		Version:   c.cfg.Version,
		Endpoints: map[string]string{
			"sse":       base + "/sse",
			"message":   base + "/message",
			"get_route": base + "/get-route",
			"estimate":  base + "/estimate",
		},
		Capabilities: c.cfg.Capabilities,
		Tools:        c.cfg.Tools,
		Metadata:     c.cfg.Metadata,
	}
}

// Register posts the announcement once.
func (c *Client) Register(ctx context.Context) (Ack, error) {
	body, err := json.Marshal(c.announcement())
	if err != nil {
		return Ack{}, fmt.Errorf("marshal announcement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RegistryURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setRegistered(false)
		return Ack{}, core.Wrap(err, core.ErrNetworkError, "registry unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setRegistered(false)
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Ack{}, core.ServiceError("registry", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		c.setRegistered(false)
		return Ack{}, fmt.Errorf("decode registry response: %w", err)
	}

	if !c.setRegistered(true) {
		c.logger.Info("registered with service registry",
			"registry", c.cfg.RegistryURL,
			"name", c.cfg.ServiceName,
			"ttl_seconds", ack.TTLSeconds)
	}
	return ack, nil
}

// Deregister removes the entry. It is a no-op when not registered.
func (c *Client) Deregister(ctx context.Context) error {
	if !c.IsRegistered() {
		return nil
	}

	endpoint := c.cfg.RegistryURL + "/api/register/" + url.PathEscape(c.cfg.ServiceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build deregistration request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Wrap(err, core.ErrNetworkError, "registry unreachable")
	}
	defer resp.Body.Close()

	c.setRegistered(false)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return core.ServiceError("registry", resp.StatusCode, "deregistration rejected")
	}
	c.logger.Info("deregistered from service registry", "name", c.cfg.ServiceName)
	return nil
}

// Start registers in the background and refreshes the entry every
// heartbeat interval until ctx ends or Stop is called.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	if c.cfg.RegistryURL == "" {
		c.logger.Warn("service registration enabled but no registry URL configured")
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.heartbeat(ctx, c.done)
}

func (c *Client) heartbeat(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if _, err := c.Register(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug("heartbeat failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the heartbeat loop and deregisters.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	ctx, stop := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer stop()
	if err := c.Deregister(ctx); err != nil {
		c.logger.Debug("deregistration failed", "error", err)
	}
}

// IsRegistered reports whether the last heartbeat succeeded.
func (c *Client) IsRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

// setRegistered stores v and returns the previous value.
func (c *Client) setRegistered(v bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.registered
	c.registered = v
	return prev
}
