package main

import (
	"github.com/spf13/cobra"

	"fulfill/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var stdout bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the fulfillment loop until interrupted",
		Long: "Run a fulfillment pass every workflow.interval_minutes and serve the\n" +
			"status API on paths.api_bind. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.logLevel(),
				Stdout:   stdout,
			})
		},
	}

	cmd.Flags().BoolVar(&stdout, "stdout", false, "Also write logs to stdout")
	return cmd
}
