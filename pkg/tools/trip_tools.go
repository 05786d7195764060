package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/coords"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// EstimateResult is one mode's estimate in an estimate_emissions answer.
type EstimateResult struct {
	Mode               emission.Mode       `json:"mode"`
	DistanceKm         float64             `json:"distance_km"`
	CO2EmissionsKg     float64             `json:"co2_emissions_kg"`
	ConfidenceInterval trip.IntervalReport `json:"confidence_interval"`
	Feasible           bool                `json:"feasible"`
}

// TransitResult is the answer of approximate_transit.
type TransitResult struct {
	DrivingKm float64 `json:"driving_km"`
	TransitKm float64 `json:"transit_km"`
	Factor    float64 `json:"factor"`
}

// GeocodeResult is the answer of geocode_address.
type GeocodeResult struct {
	Address  string       `json:"address"`
	Location geo.Location `json:"location"`
	MGRS     string       `json:"mgrs,omitempty"`
}

// HandlePlanTrip picks the best mode between two places, or evaluates one
// mode when mode is given.
func (r *Registry) HandlePlanTrip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "plan_low_carbon_trip")

	origin, destination, err := core.ParseEndpointsWithLog(req, logger, "origin", "destination")
	if err != nil {
		return toolError(err), nil
	}
	mode, single, err := core.ParseModeArg(req, "mode")
	if err != nil {
		return toolError(err), nil
	}

	if single {
		eval, err := r.planner.Evaluate(ctx, origin, destination, mode)
		if err != nil {
			logger.Info("mode evaluation failed", "mode", mode.String(), "error", err)
			return toolError(err), nil
		}
		return jsonResult(logger, trip.NewModeReport(eval)), nil
	}

	res, err := r.planner.Plan(ctx, origin, destination)
	if err != nil {
		logger.Info("trip planning failed", "error", err)
		return toolError(err), nil
	}
	return jsonResult(logger, trip.NewReport(res)), nil
}

// HandleEstimateEmissions runs the emission model for one or every mode.
func (r *Registry) HandleEstimateEmissions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "estimate_emissions")

	km, err := core.ParseDistanceArg(req, "distance_km")
	if err != nil {
		return toolError(err), nil
	}
	mode, single, err := core.ParseModeArg(req, "mode")
	if err != nil {
		return toolError(err), nil
	}

	modes := emission.Modes
	if single {
		modes = []emission.Mode{mode}
	}

	model := r.planner.Model()
	out := make([]EstimateResult, 0, len(modes))
	for _, m := range modes {
		est, err := model.Estimate(m, km)
		if err != nil {
			return toolError(core.Wrap(err, core.ErrInvalidParameter, err.Error())), nil
		}
		bounds, _ := model.Profile().Mode(m)
		out = append(out, EstimateResult{
			Mode:           m,
			DistanceKm:     trip.Round3(km),
			CO2EmissionsKg: trip.Round3(est.PointKg),
			ConfidenceInterval: trip.IntervalReport{
				Lower: trip.Round3(est.Interval.Lower),
				Upper: trip.Round3(est.Interval.Upper),
			},
			Feasible: bounds.Admits(km),
		})
	}
	return jsonResult(logger, map[string]any{"estimates": out}), nil
}

// HandleApproximateTransit applies the transit curve to a driving distance.
func (r *Registry) HandleApproximateTransit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "approximate_transit")

	km, err := core.ParseDistanceArg(req, "distance_km")
	if err != nil {
		return toolError(err), nil
	}
	transit := trip.ApproximateTransitDistance(km)
	result := TransitResult{DrivingKm: trip.Round3(km), TransitKm: trip.Round3(transit), Factor: 1}
	if km > 0 {
		result.Factor = trip.Round3(transit / km)
	}
	return jsonResult(logger, result), nil
}

// HandleGeocodeAddress resolves an address or coordinate string.
func (r *Registry) HandleGeocodeAddress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "geocode_address")

	address, err := core.StringArg(req, "address", true)
	if err != nil {
		return toolError(err), nil
	}
	loc, err := r.resolver.Resolve(ctx, address)
	if err != nil {
		logger.Info("geocoding failed", "address", address, "error", err)
		return toolError(err), nil
	}
	grid, _ := coords.ToMGRS(loc, 5)
	return jsonResult(logger, GeocodeResult{Address: address, Location: loc, MGRS: grid}), nil
}

