package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the running daemon to start a run now",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("paths.api_bind is empty; the daemon API is disabled")
			}
			resp, err := client.TriggerRun(cmd.Context())
			if resp.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
			if err != nil {
				if resp.Message != "" {
					return errors.New("run not accepted")
				}
				return fmt.Errorf("trigger run: %w", err)
			}
			return nil
		},
	}
}
