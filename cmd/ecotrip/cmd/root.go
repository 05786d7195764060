package cmd

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/ecoroute/pkg/emission"
	ver "github.com/NERVsystems/ecoroute/pkg/version"
)

type rootOptions struct {
	factorsFile string
	verbose     bool
	pretty      bool
}

// NewRootCmd builds the ecotrip command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ecotrip",
		Short: "Pick the lowest-carbon way to make a trip",
		Long: `ecotrip compares walking, cycling, public transport and driving for a trip
and reports the mode with the lowest expected CO2 emissions, together with
a 95% confidence interval and the savings compared with driving.

Routing uses the backend configured for the ecoroute server (configs/ecoroute.yaml,
.env or environment variables).`,
		Version:       ver.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&opts.factorsFile, "factors", "f", os.Getenv("ECOROUTE_FACTORS_FILE"), "YAML file with emission factors and distance bounds")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log provider traffic to stderr")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", true, "indent JSON output")

	root.AddCommand(newPlanCmd(opts), newEstimateCmd(opts), newFactorsCmd(opts))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *rootOptions) profile() (emission.Profile, error) {
	if o.factorsFile == "" {
		return emission.DefaultProfile(), nil
	}
	return emission.LoadProfile(o.factorsFile)
}

func (o *rootOptions) writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
