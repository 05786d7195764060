package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

const (
	// DefaultRouteCacheSize is the number of routes kept in process.
	DefaultRouteCacheSize = 256

	// DefaultRouteCacheTTL bounds how long a route answer is reused.
	DefaultRouteCacheTTL = 24 * time.Hour
)

// Store is a shared second-level route cache.
type Store interface {
	Get(ctx context.Context, key string) (Route, bool, error)
	Set(ctx context.Context, key string, route Route, ttl time.Duration) error
}

// CachingProvider answers repeated lookups from an in-process LRU and,
// optionally, a shared Store. Only successful lookups are cached.
type CachingProvider struct {
	next   DistanceProvider
	local  *expirable.LRU[string, Route]
	shared Store
	ttl    time.Duration
	logger *slog.Logger
}

// WithCache wraps next with an LRU of size entries. shared may be nil.
func WithCache(next DistanceProvider, size int, ttl time.Duration, shared Store) *CachingProvider {
	if size <= 0 {
		size = DefaultRouteCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultRouteCacheTTL
	}
	return &CachingProvider{
		next:   next,
		local:  expirable.NewLRU[string, Route](size, nil, ttl),
		shared: shared,
		ttl:    ttl,
		logger: slog.Default().With("cache", tracing.CacheTypeDistance),
	}
}

// Name identifies the wrapped backend.
func (c *CachingProvider) Name() string { return c.next.Name() }

func (c *CachingProvider) cacheKey(from, to geo.Location, mode emission.Mode) string {
	return fmt.Sprintf("%s|%s|%s;%s", c.next.Name(), mode, from.LonLat(), to.LonLat())
}

// Distance implements DistanceProvider.
func (c *CachingProvider) Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (Route, error) {
	key := c.cacheKey(from, to, mode)

	if route, ok := c.local.Get(key); ok {
		c.record(ctx, true, key)
		return route, nil
	}

	if c.shared != nil {
		route, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.Warn("shared cache read failed", "key", key, "error", err)
		} else if ok {
			c.local.Add(key, route)
			hookCacheSize(tracing.CacheTypeDistance, c.local.Len())
			c.record(ctx, true, key)
			return route, nil
		}
	}
	c.record(ctx, false, key)

	route, err := c.next.Distance(ctx, from, to, mode)
	if err != nil {
		return Route{}, err
	}

	c.local.Add(key, route)
	hookCacheSize(tracing.CacheTypeDistance, c.local.Len())
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, route, c.ttl); err != nil {
			c.logger.Warn("shared cache write failed", "key", key, "error", err)
		}
	}
	return route, nil
}

func (c *CachingProvider) record(ctx context.Context, hit bool, key string) {
	hookCache(tracing.CacheTypeDistance, hit)
	tracing.AddEvent(ctx, "cache_lookup")
	tracing.SetAttributes(ctx, tracing.CacheAttributes(tracing.CacheTypeDistance, hit, key)...)
	c.logger.Debug("route cache lookup", "hit", hit, "key", key)
}

// Len returns the number of routes held in process.
func (c *CachingProvider) Len() int { return c.local.Len() }

// Purge empties the in-process cache.
func (c *CachingProvider) Purge() { c.local.Purge() }
