package main

import (
	"github.com/spf13/cobra"

	"drip/internal/appliance"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recording appliance in the foreground",
		Long: "Run captures camera frames, records sessions, remuxes finished recordings,\n" +
			"drives the camera head and serves the control API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return appliance.RunProcess(cmd.Context(), cfg, appliance.RunOptions{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
