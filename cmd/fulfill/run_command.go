package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fulfill/internal/coordinator"
	"fulfill/internal/daemon"
	"fulfill/internal/fulfillment"
	"fulfill/internal/notifications"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one fulfillment pass in the foreground",
		Long: "Log in to every backend, export completed work orders, pick them in the\n" +
			"warehouse system, and dispatch pending shipments. Refuses to start while\n" +
			"the daemon holds the instance lock; use 'fulfill trigger' instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := daemon.AcquireLock(cfg)
			if err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("%w; use 'fulfill trigger' to start a run in the daemon", err)
				}
				return err
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			opts := []coordinator.Option{coordinator.WithNotifier(notifications.NewService(cfg))}
			store, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				opts = append(opts, coordinator.WithRecorder(store))
			}

			coord := coordinator.New(cfg, logger, opts...)
			report, runErr := coord.RunOnce(cmd.Context())
			if !quiet {
				printReport(cmd, report)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the run summary table")
	return cmd
}

func printReport(cmd *cobra.Command, report coordinator.Report) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Run "+report.RunID, colorize) {
		fmt.Fprintln(out, line)
	}
	if len(report.Categories) > 0 {
		rows := make([][]string, 0, len(report.Categories))
		for _, c := range report.Categories {
			rows = append(rows, statsRow(string(c.Category), c))
		}
		var footer []string
		if len(report.Categories) > 1 {
			footer = statsRow("total", report.Totals())
		}
		fmt.Fprintln(out, renderTableWithFooter(statsHeaders, rows, footer, statsAligns))
	}
	for _, c := range report.Categories {
		if c.Err != nil {
			fmt.Fprintln(out, renderStatusLine(string(c.Category), statusWarn, c.Err.Error(), colorize))
		}
	}
	switch {
	case report.Err != nil:
		fmt.Fprintln(out, renderStatusLine("Result", statusError, report.Err.Error(), colorize))
	case report.Failed():
		fmt.Fprintln(out, renderStatusLine("Result", statusWarn, "completed with failures in "+formatDuration(report.Duration()), colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Result", statusOK, "completed in "+formatDuration(report.Duration()), colorize))
	}
}

var statsHeaders = []string{"Category", "Items", "Picked", "Pick failed", "Orphaned", "Pending", "Shipped", "Self pickup", "Carrier", "Ship failed"}

var statsAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

func statsRow(name string, s fulfillment.CategoryStats) []string {
	return []string{
		name,
		strconv.Itoa(s.Items),
		strconv.Itoa(s.Picked),
		strconv.Itoa(s.PickFailed),
		strconv.Itoa(s.Orphaned),
		strconv.Itoa(s.Pending),
		strconv.Itoa(s.Shipped),
		strconv.Itoa(s.SelfPickup),
		strconv.Itoa(s.Carrier),
		strconv.Itoa(s.ShipFailed),
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
