package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fulfill/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			provider := strings.TrimSpace(cfg.Notifications.Provider)
			if provider == "" || provider == "none" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications are disabled (notifications.provider = none)")
				return nil
			}
			svc := notifications.NewService(cfg)
			if err := svc.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent via %s\n", provider)
			return nil
		},
	}
}
