package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/stretchr/testify/require"
)

var (
	berlin  = geo.Location{Latitude: 52.5200, Longitude: 13.4050}
	potsdam = geo.Location{Latitude: 52.3906, Longitude: 13.0645}
)

type fakeDistances struct {
	mu     sync.Mutex
	km     map[emission.Mode]float64
	errs   map[emission.Mode]error
	delays map[emission.Mode]time.Duration
	calls  []emission.Mode

	drivingDone atomic.Bool
}

func (f *fakeDistances) Name() string { return "fake" }

func (f *fakeDistances) Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (provider.Route, error) {
	f.mu.Lock()
	f.calls = append(f.calls, mode)
	delay := f.delays[mode]
	err := f.errs[mode]
	km, ok := f.km[mode]
	f.mu.Unlock()

	if mode == emission.Driving {
		defer f.drivingDone.Store(true)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return provider.Route{}, ctx.Err()
		}
	}
	if err != nil {
		return provider.Route{}, err
	}
	if !ok {
		if mode == emission.PublicTransport {
			return provider.Route{}, provider.ErrUnsupportedMode
		}
		return provider.Route{}, provider.ErrNoRoute
	}
	raw := json.RawMessage(fmt.Sprintf(`{"mode":%q,"distance":%v}`, mode, km*1000))
	return provider.Route{DistanceKm: km, Raw: raw}, nil
}

func (f *fakeDistances) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeResolver struct {
	places map[string]geo.Location
}

func (r fakeResolver) Resolve(_ context.Context, input string) (geo.Location, error) {
	if loc, ok := r.places[input]; ok {
		return loc, nil
	}
	return geo.Location{}, fmt.Errorf("%w: %w", provider.ErrGeocoding, provider.ErrAddressNotFound)
}

var places = fakeResolver{places: map[string]geo.Location{
	"Berlin":  berlin,
	"Potsdam": potsdam,
}}

func newPlanner(distances provider.DistanceProvider, opts Options) *Planner {
	return NewPlanner(distances, places, emission.NewModel(emission.DefaultProfile()), opts)
}

func TestPlanDrivingOnlyWithoutTransit(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Driving: 10}}
	p := newPlanner(distances, Options{DisableTransitApproximation: true})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.NoError(t, err)

	d := res.Decision
	require.Equal(t, emission.Driving, d.BestMode)
	require.InDelta(t, 1.92, d.BestEmissionKg, 1e-9)
	require.NotNil(t, d.Comparison)
	require.Equal(t, 0.0, d.Comparison.CO2SavingsKg)
	require.Equal(t, 0.0, d.Comparison.PercentageReduction)
	require.Len(t, res.Observations, 4)
}

func TestPlanTransitApproximationBeatsDriving(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Driving: 10}}
	p := newPlanner(distances, Options{})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.NoError(t, err)

	d := res.Decision
	require.Equal(t, emission.PublicTransport, d.BestMode)
	require.True(t, d.Approximated)
	require.InDelta(t, 10.35761, d.BestDistanceKm, 1e-4)
	require.InDelta(t, 0.041*10.357609, d.BestEmissionKg, 1e-5)
	require.NotNil(t, d.Comparison)
	require.InDelta(t, 1.92-0.041*10.357609, d.Comparison.CO2SavingsKg, 1e-5)
	require.Less(t, d.Comparison.DistanceSavingsKm, 0.0)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(d.Route, &raw))
	require.Equal(t, "driving-car", raw["mode"])
}

func TestPlanCyclingWins(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{
		emission.Cycling: 4,
		emission.Driving: 8,
	}}
	p := newPlanner(distances, Options{})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.NoError(t, err)

	d := res.Decision
	require.Equal(t, emission.Cycling, d.BestMode)
	require.Equal(t, 0.0, d.BestEmissionKg)
	require.InDelta(t, 1.536, d.Comparison.CO2SavingsKg, 1e-9)
	require.InDelta(t, 4.0, d.Comparison.DistanceSavingsKm, 1e-9)
	require.InDelta(t, 100.0, d.Comparison.PercentageReduction, 1e-9)
	require.Empty(t, res.Filtered)
}

func TestPlanFiltersInfeasibleModes(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{
		emission.Walking: 12,
		emission.Cycling: 12,
		emission.Driving: 11,
	}}
	p := newPlanner(distances, Options{DisableTransitApproximation: true})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.NoError(t, err)
	require.Equal(t, []emission.Mode{emission.Walking, emission.Cycling}, res.Filtered)
	require.Equal(t, emission.Driving, res.Decision.BestMode)
}

func TestPlanNoFeasibleRoute(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{}}
	p := newPlanner(distances, Options{})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.ErrorIs(t, err, ErrNoFeasibleRoute)
	require.Len(t, res.Observations, 4)
	for _, obs := range res.Observations {
		require.False(t, obs.Available(), obs.Mode)
	}
}

func TestPlanGeocodingFailureSkipsLookups(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Driving: 10}}
	p := newPlanner(distances, Options{})

	_, err := p.Plan(context.Background(), "Atlantis", "Potsdam")
	require.ErrorIs(t, err, provider.ErrGeocoding)
	require.Zero(t, distances.callCount())
	require.Equal(t, "geocode_failed", Outcome(err))
}

type bareResolver struct{}

func (bareResolver) Resolve(context.Context, string) (geo.Location, error) {
	return geo.Location{}, errors.New("lookup exploded")
}

func TestPlanWrapsForeignResolverErrors(t *testing.T) {
	distances := &fakeDistances{}
	p := NewPlanner(distances, bareResolver{}, emission.NewModel(emission.DefaultProfile()), Options{})

	_, err := p.Plan(context.Background(), "a", "b")
	require.ErrorIs(t, err, provider.ErrGeocoding)
}

func TestTransitWaitsForDriving(t *testing.T) {
	distances := &fakeDistances{
		km:     map[emission.Mode]float64{emission.Driving: 60},
		delays: map[emission.Mode]time.Duration{emission.Driving: 50 * time.Millisecond},
	}
	var sawDriving atomic.Bool
	var approximations atomic.Int32
	p := newPlanner(distances, Options{
		Approximator: func(km float64) float64 {
			approximations.Add(1)
			sawDriving.Store(distances.drivingDone.Load())
			return ApproximateTransitDistance(km)
		},
	})

	obs := p.Observe(context.Background(), berlin, potsdam, []emission.Mode{emission.PublicTransport})
	require.Len(t, obs, 1)
	require.Equal(t, emission.PublicTransport, obs[0].Mode)
	require.True(t, obs[0].Approximated)
	require.InDelta(t, 63.0, obs[0].Distance(), 1e-9)
	require.Equal(t, int32(1), approximations.Load())
	require.True(t, sawDriving.Load())
}

func TestTransitDirectRouteIsUsed(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{
		emission.PublicTransport: 9,
		emission.Driving:         8,
	}}
	p := newPlanner(distances, Options{})

	obs := p.Observe(context.Background(), berlin, potsdam, []emission.Mode{emission.PublicTransport, emission.Driving})
	require.Len(t, obs, 2)
	require.Equal(t, emission.PublicTransport, obs[0].Mode)
	require.False(t, obs[0].Approximated)
	require.Equal(t, 9.0, obs[0].Distance())
	require.Equal(t, emission.Driving, obs[1].Mode)
}

func TestTransitUnavailableWhenDrivingFails(t *testing.T) {
	distances := &fakeDistances{
		errs: map[emission.Mode]error{emission.Driving: core.NewError(core.ErrServiceUnavailable, "down")},
	}
	p := newPlanner(distances, Options{})

	obs := p.Observe(context.Background(), berlin, potsdam, []emission.Mode{emission.PublicTransport})
	require.Len(t, obs, 1)
	require.False(t, obs[0].Available())
}

func TestObserveSkipsDrivingWhenNotNeeded(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Walking: 1}}
	p := newPlanner(distances, Options{})

	obs := p.Observe(context.Background(), berlin, potsdam, []emission.Mode{emission.Walking})
	require.Len(t, obs, 1)
	require.True(t, obs[0].Available())
	require.Equal(t, 1, distances.callCount())
}

func TestLookupRejectsInvalidProviderDistance(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Driving: -3}}
	p := newPlanner(distances, Options{DisableTransitApproximation: true})

	_, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.ErrorIs(t, err, ErrNoFeasibleRoute)
}

type flakyDistances struct {
	fakeDistances
	failures atomic.Int32
	failN    int32
}

func (f *flakyDistances) Distance(ctx context.Context, from, to geo.Location, mode emission.Mode) (provider.Route, error) {
	if mode == emission.Driving && f.failures.Add(1) <= f.failN {
		return provider.Route{}, core.ServiceError("fake", 503, "try later")
	}
	return f.fakeDistances.Distance(ctx, from, to, mode)
}

func TestPlanRecoversThroughRetry(t *testing.T) {
	flaky := &flakyDistances{
		fakeDistances: fakeDistances{km: map[emission.Mode]float64{emission.Driving: 10}},
		failN:         2,
	}
	retrying := provider.WithRetry(flaky, core.FixedRetryOptions(3, time.Millisecond))
	p := newPlanner(retrying, Options{DisableTransitApproximation: true})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.NoError(t, err)
	require.Equal(t, emission.Driving, res.Decision.BestMode)
	require.Equal(t, int32(3), flaky.failures.Load())
}

func TestPlanDropsModeAfterRetriesExhausted(t *testing.T) {
	flaky := &flakyDistances{
		fakeDistances: fakeDistances{km: map[emission.Mode]float64{
			emission.Cycling: 3,
			emission.Driving: 4,
		}},
		failN: 100,
	}
	retrying := provider.WithRetry(flaky, core.FixedRetryOptions(3, time.Millisecond))
	p := newPlanner(retrying, Options{})

	res, err := p.Plan(context.Background(), "Berlin", "Potsdam")
	require.NoError(t, err)
	require.Equal(t, emission.Cycling, res.Decision.BestMode)
	require.Nil(t, res.Decision.Comparison)
	require.Equal(t, int32(3), flaky.failures.Load())
}

func TestPlanCancelled(t *testing.T) {
	distances := &fakeDistances{
		km:     map[emission.Mode]float64{emission.Driving: 10},
		delays: map[emission.Mode]time.Duration{emission.Driving: time.Second},
	}
	p := newPlanner(distances, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Plan(ctx, "Berlin", "Potsdam")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvaluateSingleMode(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Cycling: 7}}
	p := newPlanner(distances, Options{})

	eval, err := p.Evaluate(context.Background(), "Berlin", "Potsdam", emission.Cycling)
	require.NoError(t, err)
	require.Equal(t, emission.Cycling, eval.Candidate.Mode())
	require.Equal(t, 7.0, eval.Candidate.DistanceKm())
	require.False(t, eval.Feasible)
	require.Equal(t, 1, distances.callCount())

	report := NewModeReport(eval)
	require.Equal(t, 0.0, report.CO2EmissionsKg)
	require.False(t, report.Feasible)
}

func TestEvaluateTransitApproximates(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{emission.Driving: 30}}
	p := newPlanner(distances, Options{})

	eval, err := p.Evaluate(context.Background(), "Berlin", "Potsdam", emission.PublicTransport)
	require.NoError(t, err)
	require.True(t, eval.Candidate.Observation.Approximated)
	require.InDelta(t, 34.5, eval.Candidate.DistanceKm(), 1e-9)
	require.True(t, eval.Feasible)
}

func TestEvaluateUnavailableMode(t *testing.T) {
	distances := &fakeDistances{km: map[emission.Mode]float64{}}
	p := newPlanner(distances, Options{})

	_, err := p.Evaluate(context.Background(), "Berlin", "Potsdam", emission.Walking)
	require.ErrorIs(t, err, ErrModeUnavailable)
	require.Equal(t, "no_route", Outcome(err))
}

func TestEvaluateUnknownMode(t *testing.T) {
	distances := &fakeDistances{}
	p := newPlanner(distances, Options{})

	_, err := p.Evaluate(context.Background(), "Berlin", "Potsdam", emission.Mode("teleport"))
	require.ErrorIs(t, err, ErrUnknownMode)
	require.Zero(t, distances.callCount())
	require.Equal(t, "invalid_request", Outcome(err))
}
