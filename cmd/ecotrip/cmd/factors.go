package cmd

import (
	"github.com/spf13/cobra"

	"github.com/NERVsystems/ecoroute/pkg/api"
	"github.com/NERVsystems/ecoroute/pkg/emission"
)

func newFactorsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "factors",
		Short: "Print the emission factors and distance bounds in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := opts.profile()
			if err != nil {
				return err
			}
			return opts.writeJSON(cmd, api.FactorsResponse{
				Profile: profile.Name(),
				Modes:   profile.Entries(),
				Order:   emission.Modes,
			})
		},
	}
}
