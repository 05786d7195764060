package cmd

import (
	"github.com/spf13/cobra"

	"github.com/NERVsystems/ecoroute/pkg/api"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	var (
		mode     string
		distance string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate emissions for a known distance",
		Long: `Estimate the CO2 emissions of travelling a known distance. Without --mode
every mode is estimated. No routing or geocoding service is contacted.`,
		Example: `  ecotrip estimate --distance 12.5
  ecotrip estimate --mode driving-car --distance 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, err := core.ParseDistance(distance)
			if err != nil {
				return err
			}
			profile, err := opts.profile()
			if err != nil {
				return err
			}
			model := emission.NewModel(profile)

			modes := emission.Modes
			if mode != "" {
				m, err := core.ParseMode(mode)
				if err != nil {
					return err
				}
				modes = []emission.Mode{m}
			}

			estimates := make([]api.EstimateResponse, 0, len(modes))
			for _, m := range modes {
				est, err := model.Estimate(m, km)
				if err != nil {
					return err
				}
				bounds, _ := profile.Mode(m)
				estimates = append(estimates, api.EstimateResponse{
					Mode:           m,
					DistanceKm:     trip.Round3(est.DistanceKm),
					CO2EmissionsKg: trip.Round3(est.PointKg),
					ConfidenceInterval: trip.IntervalReport{
						Lower: trip.Round3(est.Interval.Lower),
						Upper: trip.Round3(est.Interval.Upper),
					},
					Feasible: bounds.Admits(km),
				})
			}
			if len(estimates) == 1 {
				return opts.writeJSON(cmd, estimates[0])
			}
			return opts.writeJSON(cmd, map[string]any{"estimates": estimates})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "transport mode (foot-walking, cycling-regular, publicTransport, driving-car)")
	cmd.Flags().StringVarP(&distance, "distance", "d", "", "distance in kilometres")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}
