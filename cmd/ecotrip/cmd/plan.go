package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/ecoroute/pkg/app"
	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/provider"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var (
		mode      string
		noTransit bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "plan <origin> <destination>",
		Short: "Plan the lowest-carbon trip between two places",
		Example: `  ecotrip plan "Alexanderplatz, Berlin" "Potsdam Hauptbahnhof"
  ecotrip plan 52.5219,13.4132 52.3917,13.0669 --mode cycling-regular`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.factorsFile != "" {
				cfg.Planner.FactorsFile = opts.factorsFile
			}
			if noTransit {
				cfg.Planner.ApproximateTransit = false
			}
			if timeout <= 0 {
				timeout = cfg.Planner.RequestTimeout
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			stack, err := app.New(ctx, cfg, opts.logger(cmd))
			if err != nil {
				return err
			}
			defer stack.Close()

			origin, destination := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if strings.TrimSpace(mode) != "" {
				m, err := core.ParseMode(mode)
				if err != nil {
					return err
				}
				eval, err := stack.Planner.Evaluate(ctx, origin, destination, m)
				if err != nil {
					return describe(err)
				}
				return opts.writeJSON(cmd, trip.NewModeReport(eval))
			}

			res, err := stack.Planner.Plan(ctx, origin, destination)
			if err != nil {
				return describe(err)
			}
			return opts.writeJSON(cmd, trip.NewReport(res))
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "evaluate a single mode (foot-walking, cycling-regular, publicTransport, driving-car)")
	cmd.Flags().BoolVar(&noTransit, "no-transit-approximation", false, "leave public transport out unless the backend routes it")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline (defaults to planner.requestTimeout)")
	return cmd
}

// describe prefixes planner errors with the outcome the HTTP API reports.
func describe(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out: %w", err)
	case errors.Is(err, provider.ErrGeocoding) && provider.IsInvalidAddress(err):
		return fmt.Errorf("invalid address: %w", err)
	case errors.Is(err, provider.ErrGeocoding):
		return fmt.Errorf("geocoding service unavailable: %w", err)
	case errors.Is(err, trip.ErrNoFeasibleRoute), errors.Is(err, trip.ErrModeUnavailable):
		return fmt.Errorf("no route found: %w", err)
	}
	return err
}
