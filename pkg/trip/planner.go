package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrModeUnavailable means the requested mode has no route.
	ErrModeUnavailable = errors.New("no route for mode")
	// ErrUnknownMode is returned for mode tokens outside emission.Modes.
	ErrUnknownMode = errors.New("unknown transport mode")
)

// Lookup outcomes recorded per mode.
const (
	lookupOK          = "ok"
	lookupNoRoute     = "no_route"
	lookupUnsupported = "unsupported"
	lookupCancelled   = "cancelled"
	lookupInvalid     = "invalid_distance"
	lookupUnavailable = "unavailable"
)

// Resolver turns an address or coordinate string into a location.
type Resolver interface {
	Resolve(ctx context.Context, input string) (geo.Location, error)
}

// Options configures a Planner.
type Options struct {
	// DisableTransitApproximation leaves public transport unavailable
	// unless the provider routes it directly.
	DisableTransitApproximation bool
	// Approximator overrides the transit curve.
	Approximator Approximator
	Logger       *slog.Logger
}

// Planner runs the lookup, estimate, filter and select pipeline.
type Planner struct {
	distances    provider.DistanceProvider
	resolver     Resolver
	model        *emission.Model
	approximate  bool
	approximator Approximator
	logger       *slog.Logger
}

// NewPlanner creates a planner over the given collaborators.
func NewPlanner(distances provider.DistanceProvider, resolver Resolver, model *emission.Model, opts Options) *Planner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	approximator := opts.Approximator
	if approximator == nil {
		approximator = TransitApproximator
	}
	return &Planner{
		distances:    distances,
		resolver:     resolver,
		model:        model,
		approximate:  !opts.DisableTransitApproximation,
		approximator: approximator,
		logger:       logger.With("component", "planner"),
	}
}

// Model returns the emission model in use.
func (p *Planner) Model() *emission.Model { return p.model }

// Result is a completed planning run.
type Result struct {
	Origin       geo.Location
	Destination  geo.Location
	Observations []RouteObservation
	Filtered     []emission.Mode
	Decision     Decision
}

// Evaluation is the estimate for a single requested mode.
type Evaluation struct {
	Origin      geo.Location
	Destination geo.Location
	Candidate   Candidate
	// Feasible reports whether the distance lies within the mode's bounds.
	Feasible bool
}

// Plan resolves both endpoints and picks the lowest-emission feasible mode.
// A resolution failure returns an error wrapping provider.ErrGeocoding
// before any distance is looked up.
func (p *Planner) Plan(ctx context.Context, origin, destination string) (Result, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "trip.plan")
	defer span.End()

	from, to, err := p.resolve(ctx, origin, destination)
	if err != nil {
		p.finish(ctx, "plan", start, err)
		return Result{}, err
	}

	res, err := p.PlanLocations(ctx, from, to)
	p.finish(ctx, "plan", start, err)
	return res, err
}

// PlanLocations picks the lowest-emission feasible mode between two
// resolved locations. When nothing is feasible the partial result is
// returned together with ErrNoFeasibleRoute.
func (p *Planner) PlanLocations(ctx context.Context, from, to geo.Location) (Result, error) {
	res := Result{Origin: from, Destination: to}
	res.Observations = p.Observe(ctx, from, to, emission.Modes)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	set, err := BuildCandidates(p.model, res.Observations)
	if err != nil {
		return res, err
	}

	var driving *Candidate
	if c, ok := set[emission.Driving]; ok {
		driving = &c
	}

	res.Filtered = set.Filter(p.model.Profile())
	for _, mode := range res.Filtered {
		monitoring.RecordModeFiltered(mode.String())
		p.logger.Debug("mode outside feasible distance", "mode", mode.String())
	}

	decision, err := Select(set, driving)
	if err != nil {
		return res, err
	}
	res.Decision = decision

	var savings *float64
	if decision.Comparison != nil {
		savings = &decision.Comparison.CO2SavingsKg
	}
	monitoring.RecordDecision(decision.BestMode.String(), savings)

	tracing.SetAttributes(ctx,
		tracing.DecisionAttributes(decision.BestMode.String(), decision.BestEmissionKg, len(decision.Candidates))...)
	p.logger.Info("trip planned",
		"best_mode", decision.BestMode.String(),
		"distance_km", Round3(decision.BestDistanceKm),
		"co2_kg", Round3(decision.BestEmissionKg),
		"candidates", len(decision.Candidates),
		"filtered", len(res.Filtered),
	)
	return res, nil
}

// Evaluate estimates a single mode. Public transport falls back to the
// approximation from driving. An unavailable mode returns ErrModeUnavailable.
func (p *Planner) Evaluate(ctx context.Context, origin, destination string, mode emission.Mode) (Evaluation, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "trip.evaluate",
		trace.WithAttributes(attribute.String(tracing.AttrTripMode, mode.String())))
	defer span.End()

	if !mode.Valid() {
		err := fmt.Errorf("%w %q", ErrUnknownMode, mode)
		p.finish(ctx, "evaluate", start, err)
		return Evaluation{}, err
	}

	from, to, err := p.resolve(ctx, origin, destination)
	if err != nil {
		p.finish(ctx, "evaluate", start, err)
		return Evaluation{}, err
	}

	eval := Evaluation{Origin: from, Destination: to}
	obs := p.Observe(ctx, from, to, []emission.Mode{mode})
	if len(obs) == 0 || !obs[0].Available() {
		err = fmt.Errorf("%w: %s", ErrModeUnavailable, mode)
		p.finish(ctx, "evaluate", start, err)
		return eval, err
	}

	est, err := p.model.Estimate(mode, obs[0].Distance())
	if err != nil {
		p.finish(ctx, "evaluate", start, err)
		return eval, err
	}
	eval.Candidate = Candidate{Observation: obs[0], Estimate: est}
	bounds, _ := p.model.Profile().Mode(mode)
	eval.Feasible = bounds.Admits(obs[0].Distance())

	p.finish(ctx, "evaluate", start, nil)
	return eval, nil
}

// resolve looks up both endpoints concurrently. Any failure cancels the
// other lookup.
func (p *Planner) resolve(ctx context.Context, origin, destination string) (geo.Location, geo.Location, error) {
	var from, to geo.Location
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = p.resolver.Resolve(gctx, origin)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = p.resolver.Resolve(gctx, destination)
		return err
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, provider.ErrGeocoding) {
			err = fmt.Errorf("%w: %w", provider.ErrGeocoding, err)
		}
		return geo.Location{}, geo.Location{}, err
	}
	return from, to, nil
}

// Observe looks up the requested modes concurrently and returns one
// observation per mode in priority order. Public transport is first asked
// of the provider; when that yields nothing it is approximated from the
// driving distance once the driving lookup has finished. Lookup failures
// become unavailable observations.
func (p *Planner) Observe(ctx context.Context, from, to geo.Location, modes []emission.Mode) []RouteObservation {
	want := make(map[emission.Mode]bool, len(modes))
	for _, m := range modes {
		want[m] = true
	}
	needDriving := want[emission.Driving] || (want[emission.PublicTransport] && p.approximate)

	observed := make([]RouteObservation, len(emission.Modes))
	var driving RouteObservation
	drivingDone := make(chan struct{})

	var g errgroup.Group
	if needDriving {
		g.Go(func() error {
			defer close(drivingDone)
			driving = p.lookup(ctx, from, to, emission.Driving)
			return nil
		})
	} else {
		close(drivingDone)
	}

	for i, mode := range emission.Modes {
		if !want[mode] || mode == emission.Driving {
			continue
		}
		if mode == emission.PublicTransport {
			g.Go(func() error {
				observed[i] = p.observeTransit(ctx, from, to, drivingDone, &driving)
				return nil
			})
			continue
		}
		g.Go(func() error {
			observed[i] = p.lookup(ctx, from, to, mode)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]RouteObservation, 0, len(modes))
	for i, mode := range emission.Modes {
		if !want[mode] {
			continue
		}
		if mode == emission.Driving {
			out = append(out, driving)
			continue
		}
		out = append(out, observed[i])
	}
	return out
}

// observeTransit reads *driving only after drivingDone is closed.
func (p *Planner) observeTransit(ctx context.Context, from, to geo.Location, drivingDone <-chan struct{}, driving *RouteObservation) RouteObservation {
	direct := p.lookup(ctx, from, to, emission.PublicTransport)
	if direct.Available() || !p.approximate {
		return direct
	}

	select {
	case <-drivingDone:
	case <-ctx.Done():
		return Unavailable(emission.PublicTransport)
	}

	approx := p.approximator.Approximate(*driving)
	if approx.Available() {
		p.logger.Debug("public transport approximated from driving",
			"driving_km", Round3(driving.Distance()),
			"transit_km", Round3(approx.Distance()),
		)
	}
	return approx
}

func (p *Planner) lookup(ctx context.Context, from, to geo.Location, mode emission.Mode) RouteObservation {
	ctx, span := tracing.StartSpan(ctx, "trip.lookup",
		trace.WithAttributes(attribute.String(tracing.AttrTripMode, mode.String())))
	defer span.End()

	route, err := p.distances.Distance(ctx, from, to, mode)
	outcome := classifyLookup(err)
	if err == nil && (math.IsNaN(route.DistanceKm) || math.IsInf(route.DistanceKm, 0) || route.DistanceKm < 0) {
		outcome = lookupInvalid
		err = fmt.Errorf("provider returned distance %v", route.DistanceKm)
	}
	monitoring.RecordModeLookup(mode.String(), outcome)
	span.SetAttributes(attribute.String(tracing.AttrTripOutcome, outcome))

	if err != nil {
		switch outcome {
		case lookupUnsupported, lookupNoRoute, lookupCancelled:
			p.logger.Debug("mode unavailable", "mode", mode.String(), "outcome", outcome, "error", err)
		default:
			p.logger.Warn("mode lookup failed", "mode", mode.String(), "outcome", outcome, "error", err)
			span.RecordError(err)
			span.SetAttributes(tracing.ErrorAttributes(err)...)
			span.SetStatus(codes.Error, outcome)
		}
		return Unavailable(mode)
	}

	span.SetAttributes(tracing.ModeAttributes(mode.String(), route.DistanceKm, false)...)
	return Observed(mode, route.DistanceKm, route.Raw)
}

func classifyLookup(err error) string {
	switch {
	case err == nil:
		return lookupOK
	case errors.Is(err, provider.ErrUnsupportedMode):
		return lookupUnsupported
	case errors.Is(err, provider.ErrNoRoute):
		return lookupNoRoute
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return lookupCancelled
	default:
		return lookupUnavailable
	}
}

func (p *Planner) finish(ctx context.Context, kind string, start time.Time, err error) {
	outcome := Outcome(err)
	monitoring.RecordTripRequest(kind, outcome, time.Since(start))
	tracing.SetAttributes(ctx, attribute.String(tracing.AttrTripOutcome, outcome))
	if err != nil && outcome == monitoring.OutcomeError {
		tracing.RecordError(ctx, err)
		tracing.SetStatus(ctx, codes.Error, outcome)
	}
}

// Outcome classifies a planning error for metrics and responses.
func Outcome(err error) string {
	switch {
	case err == nil:
		return monitoring.OutcomeSuccess
	case errors.Is(err, provider.ErrGeocoding):
		return monitoring.OutcomeGeocodeFailed
	case errors.Is(err, ErrUnknownMode):
		return monitoring.OutcomeInvalidRequest
	case errors.Is(err, ErrNoFeasibleRoute), errors.Is(err, ErrModeUnavailable):
		return monitoring.OutcomeNoRoute
	default:
		return monitoring.OutcomeError
	}
}
