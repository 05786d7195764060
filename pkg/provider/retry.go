package provider

import (
	"context"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
)

// RetryingProvider retries transient failures of the wrapped provider.
// ErrNoRoute and ErrUnsupportedMode are returned immediately.
type RetryingProvider struct {
	next    DistanceProvider
	options core.RetryOptions
}

// WithRetry wraps next with the given retry policy.
func WithRetry(next DistanceProvider, options core.RetryOptions) *RetryingProvider {
	return &RetryingProvider{next: next, options: options}
}

// Name identifies the wrapped backend.
func (r *RetryingProvider) Name() string { return r.next.Name() }

// Distance implements DistanceProvider.
func (r *RetryingProvider) Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (Route, error) {
	var route Route
	err := core.Retry(ctx, "distance "+string(mode), r.options, func(ctx context.Context, _ int) error {
		var err error
		route, err = r.next.Distance(ctx, from, to, mode)
		return err
	})
	if err != nil {
		return Route{}, err
	}
	return route, nil
}

// RetryingGeocoder retries transient geocoding failures.
type RetryingGeocoder struct {
	next    Geocoder
	options core.RetryOptions
}

// WithGeocoderRetry wraps next with the given retry policy.
func WithGeocoderRetry(next Geocoder, options core.RetryOptions) *RetryingGeocoder {
	return &RetryingGeocoder{next: next, options: options}
}

// Geocode implements Geocoder.
func (r *RetryingGeocoder) Geocode(ctx context.Context, address string) (geo.Location, error) {
	var loc geo.Location
	err := core.Retry(ctx, "geocode", r.options, func(ctx context.Context, _ int) error {
		var err error
		loc, err = r.next.Geocode(ctx, address)
		return err
	})
	if err != nil {
		return geo.Location{}, err
	}
	return loc, nil
}
