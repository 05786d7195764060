package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/cache"
	"github.com/NERVsystems/ecoroute/pkg/coords"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// ErrGeocoding wraps every failure to turn an endpoint into a location.
var ErrGeocoding = errors.New("geocoding failed")

// Resolver turns user supplied endpoints into locations. Inputs written as
// coordinates are parsed locally, everything else goes to the geocoder.
type Resolver struct {
	geocoder Geocoder
	cache    *cache.TTLCache[string, geo.Location]
	logger   *slog.Logger
}

// NewResolver creates a resolver with a geocode cache of maxItems entries.
func NewResolver(geocoder Geocoder, ttl time.Duration, maxItems int) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		cache:    cache.NewTTLCache[string, geo.Location](ttl, time.Minute, maxItems),
		logger:   slog.Default().With("component", "resolver"),
	}
}

// Resolve returns the location for input. Every failure wraps ErrGeocoding.
func (r *Resolver) Resolve(ctx context.Context, input string) (geo.Location, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return geo.Location{}, fmt.Errorf("%w: %w", ErrGeocoding,
			core.NewError(core.ErrEmptyParameter, "address must not be empty"))
	}

	loc, format, err := coords.Parse(input)
	switch {
	case err == nil:
		r.logger.Debug("endpoint given as coordinates", "format", format.String(), "location", loc.String())
		return loc, nil
	case !errors.Is(err, coords.ErrNotCoordinate):
		return geo.Location{}, fmt.Errorf("%w: %w", ErrGeocoding,
			core.Wrap(err, core.ErrInvalidParameter, fmt.Sprintf("invalid coordinates %q", input)))
	}

	key := strings.ToLower(input)
	if cached, ok := r.cache.Get(key); ok {
		hookCache(tracing.CacheTypeGeocode, true)
		return cached, nil
	}
	hookCache(tracing.CacheTypeGeocode, false)

	loc, err = r.geocoder.Geocode(ctx, input)
	if err != nil {
		r.logger.Info("geocoding failed", "address", input, "error", err)
		if errors.Is(err, ErrAddressNotFound) {
			return geo.Location{}, fmt.Errorf("%w: %w", ErrGeocoding,
				core.Wrap(err, core.ErrAddressNotFound, fmt.Sprintf("no match for %q", input)))
		}
		return geo.Location{}, fmt.Errorf("%w: %w", ErrGeocoding, err)
	}

	r.cache.Set(key, loc)
	hookCacheSize(tracing.CacheTypeGeocode, r.cache.Count())
	return loc, nil
}

// IsInvalidAddress reports whether a resolution failure was caused by the
// input itself rather than by the geocoding service.
func IsInvalidAddress(err error) bool {
	if errors.Is(err, ErrAddressNotFound) {
		return true
	}
	switch core.CodeOf(err) {
	case core.ErrAddressNotFound, core.ErrEmptyParameter, core.ErrInvalidParameter,
		core.ErrInvalidLatitude, core.ErrInvalidLongitude:
		return true
	}
	return false
}

// CacheStats exposes geocode cache counters.
func (r *Resolver) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// Close stops the cache sweeper.
func (r *Resolver) Close() {
	r.cache.Stop()
}
