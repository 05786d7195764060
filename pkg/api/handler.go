package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/NERVsystems/ecoroute/pkg/coords"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/geo"
	"github.com/NERVsystems/ecoroute/pkg/trip"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

// Planner is the trip planning surface the API needs.
type Planner interface {
	Plan(ctx context.Context, origin, destination string) (trip.Result, error)
	Evaluate(ctx context.Context, origin, destination string, mode emission.Mode) (trip.Evaluation, error)
	Model() *emission.Model
}

// Handler exposes the planner over HTTP.
type Handler struct {
	planner  Planner
	resolver trip.Resolver
	logger   *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(planner Planner, resolver trip.Resolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{planner: planner, resolver: resolver, logger: logger.With("component", "api")}
}

// EstimateResponse is the body of /estimate.
type EstimateResponse struct {
	Mode               emission.Mode       `json:"mode"`
	DistanceKm         float64             `json:"distance_km"`
	CO2EmissionsKg     float64             `json:"co2_emissions_kg"`
	ConfidenceInterval trip.IntervalReport `json:"confidence_interval"`
	Feasible           bool                `json:"feasible"`
}

// GeocodeResponse is the body of /geocode.
type GeocodeResponse struct {
	Address  string       `json:"address"`
	Location geo.Location `json:"location"`
	MGRS     string       `json:"mgrs,omitempty"`
}

// FactorsResponse is the body of /factors.
type FactorsResponse struct {
	Profile string                                 `json:"profile"`
	Modes   map[emission.Mode]emission.ModeProfile `json:"modes"`
	Order   []emission.Mode                        `json:"priority"`
}

// GetRoute plans a trip. With a mode parameter only that mode is evaluated.
func (h *Handler) GetRoute(c *gin.Context) {
	origin := strings.TrimSpace(c.Query("origin"))
	destination := strings.TrimSpace(c.Query("destination"))
	if origin == "" || destination == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "missing_parameter", msgMissingEndpoints, nil))
		return
	}

	if token := strings.TrimSpace(c.Query("mode")); token != "" {
		mode, err := core.ParseMode(token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		eval, err := h.planner.Evaluate(c.Request.Context(), origin, destination, mode)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip.NewModeReport(eval))
		return
	}

	res, err := h.planner.Plan(c.Request.Context(), origin, destination)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip.NewReport(res))
}

// Estimate runs the emission model for a mode and distance without routing.
func (h *Handler) Estimate(c *gin.Context) {
	mode, err := core.ParseMode(c.Query("mode"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	km, err := core.ParseDistance(c.Query("distance_km"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	model := h.planner.Model()
	est, err := model.Estimate(mode, km)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", err.Error(), err))
		return
	}
	bounds, _ := model.Profile().Mode(mode)
	c.JSON(http.StatusOK, EstimateResponse{
		Mode:           mode,
		DistanceKm:     trip.Round3(est.DistanceKm),
		CO2EmissionsKg: trip.Round3(est.PointKg),
		ConfidenceInterval: trip.IntervalReport{
			Lower: trip.Round3(est.Interval.Lower),
			Upper: trip.Round3(est.Interval.Upper),
		},
		Feasible: bounds.Admits(km),
	})
}

// Geocode resolves an address or coordinate string.
func (h *Handler) Geocode(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "missing_parameter", "Missing address", nil))
		return
	}
	loc, err := h.resolver.Resolve(c.Request.Context(), address)
	if err != nil {
		abortWithError(c, err)
		return
	}
	grid, _ := coords.ToMGRS(loc, 5)
	c.JSON(http.StatusOK, GeocodeResponse{Address: address, Location: loc, MGRS: grid})
}

// Factors returns the active emission profile.
func (h *Handler) Factors(c *gin.Context) {
	profile := h.planner.Model().Profile()
	c.JSON(http.StatusOK, FactorsResponse{
		Profile: profile.Name(),
		Modes:   profile.Entries(),
		Order:   emission.Modes,
	})
}

// Version returns build metadata.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Info())
}
