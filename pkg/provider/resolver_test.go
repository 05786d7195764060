package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/geo"
)

type fakeGeocoder struct {
	calls int32
	loc   geo.Location
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (geo.Location, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.loc, f.err
}

func TestResolverCoordinatesSkipGeocoding(t *testing.T) {
	g := &fakeGeocoder{}
	r := NewResolver(g, time.Minute, 10)
	defer r.Close()

	loc, err := r.Resolve(context.Background(), "52.52, 13.405")
	if err != nil {
		t.Fatal(err)
	}
	if loc != berlin {
		t.Errorf("location = %v, expected %v", loc, berlin)
	}
	if g.calls != 0 {
		t.Errorf("geocoder should not be called for coordinates")
	}
}

func TestResolverPostcodeGoesToGeocoder(t *testing.T) {
	stockholm := geo.Location{Latitude: 59.3379, Longitude: 18.0885}
	g := &fakeGeocoder{loc: stockholm}
	r := NewResolver(g, time.Minute, 10)
	defer r.Close()

	loc, err := r.Resolve(context.Background(), "114 55")
	if err != nil {
		t.Fatal(err)
	}
	if loc != stockholm {
		t.Errorf("location = %v, expected %v", loc, stockholm)
	}
	if g.calls != 1 {
		t.Errorf("geocoder calls = %d, expected 1", g.calls)
	}
}

func TestResolverCachesAddresses(t *testing.T) {
	g := &fakeGeocoder{loc: potsdam}
	r := NewResolver(g, time.Minute, 10)
	defer r.Close()

	for _, input := range []string{"Potsdam", "potsdam ", "POTSDAM"} {
		loc, err := r.Resolve(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if loc != potsdam {
			t.Errorf("location = %v", loc)
		}
	}
	if g.calls != 1 {
		t.Errorf("geocoder calls = %d, expected 1", g.calls)
	}
	if stats := r.CacheStats(); stats.Hits != 2 {
		t.Errorf("cache hits = %d, expected 2", stats.Hits)
	}
}

func TestResolverFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err     error
		code    core.ErrorCode
		invalid bool
	}{
		{"empty", "  ", nil, core.ErrEmptyParameter, true},
		{"bad coordinates", "95.0, 10.0", nil, core.ErrInvalidParameter, true},
		{"not found", "Atlantis", ErrAddressNotFound, core.ErrAddressNotFound, true},
		{"service down", "Berlin", core.NewError(core.ErrServiceUnavailable, "down"), core.ErrServiceUnavailable, false},
		{"upstream 503", "Berlin", core.ServiceError("openrouteservice", 503, "busy"), core.ErrServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeGeocoder{err: tt.err}, time.Minute, 10)
			defer r.Close()

			_, err := r.Resolve(context.Background(), tt.input)
			if !errors.Is(err, ErrGeocoding) {
				t.Fatalf("expected ErrGeocoding, got %v", err)
			}
			if code := core.CodeOf(err); code != tt.code {
				t.Errorf("code = %s, expected %s", code, tt.code)
			}
			if got := IsInvalidAddress(err); got != tt.invalid {
				t.Errorf("IsInvalidAddress = %v, expected %v", got, tt.invalid)
			}
		})
	}
}
