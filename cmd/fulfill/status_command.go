package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fulfill/internal/api"
	"fulfill/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration checks, daemon state, and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if !skipChecks {
				printLines(out, renderSectionHeader("Checks", colorize))
				for _, r := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !r.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				fmt.Fprintln(out)
			}

			printLines(out, renderSectionHeader("Daemon", colorize))
			status, reachable := daemonStatus(cmd.Context(), ctx)
			if reachable {
				printDaemonStatus(out, status, colorize)
			} else {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
			}
			fmt.Fprintln(out)

			runs, err := recentRuns(cmd.Context(), ctx, limit)
			if err != nil {
				return err
			}
			printLines(out, renderSectionHeader("Recent runs", colorize))
			if runs == nil {
				fmt.Fprintln(out, renderStatusLine("Ledger", statusInfo, "disabled", colorize))
				return nil
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRunsTable(runs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip connectivity and configuration checks")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent runs to show")
	return cmd
}

func daemonStatus(ctx context.Context, cc *commandContext) (api.DaemonStatus, bool) {
	client, err := cc.apiClient()
	if err != nil || client == nil {
		return api.DaemonStatus{}, false
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status, err := client.Status(reqCtx)
	if err != nil {
		return api.DaemonStatus{}, false
	}
	return status, true
}

func printDaemonStatus(out io.Writer, s api.DaemonStatus, colorize bool) {
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", s.PID), colorize))
	if s.InRun {
		fmt.Fprintln(out, renderStatusLine("Current run", statusInfo, "in progress", colorize))
	} else if s.NextRun != "" {
		fmt.Fprintln(out, renderStatusLine("Next run", statusInfo, displayTime(s.NextRun), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Interval", statusInfo, fmt.Sprintf("%g minutes", s.Interval), colorize))
	if s.LastRun != nil {
		summary := fmt.Sprintf("%s at %s", s.LastRun.Status, displayTime(s.LastRun.FinishedAt))
		fmt.Fprintln(out, renderStatusLine("Last run", runStatusKind(s.LastRun.Status), summary, colorize))
	}
	if s.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, s.LastError, colorize))
	}
	orphanKind := statusOK
	if s.OpenOrphans > 0 {
		orphanKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Open orphans", orphanKind, strconv.Itoa(s.OpenOrphans), colorize))
}

// recentRuns returns nil when the ledger is disabled.
func recentRuns(ctx context.Context, cc *commandContext, limit int) ([]api.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	store, err := cc.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, nil
	}
	defer store.Close()
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	return api.FromRunSummaries(runs), nil
}

func renderRunsTable(runs []api.Run) string {
	headers := []string{"Started", "Status", "Duration", "Items", "Picked", "Orphaned", "Shipped", "Error"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		var items, picked, orphaned, shipped int
		for _, c := range r.Categories {
			items += c.Items
			picked += c.Picked
			orphaned += c.Orphaned
			shipped += c.Shipped
		}
		rows = append(rows, []string{
			displayTime(r.StartedAt),
			r.Status,
			formatDuration(time.Duration(r.DurationMS) * time.Millisecond),
			strconv.Itoa(items),
			strconv.Itoa(picked),
			strconv.Itoa(orphaned),
			strconv.Itoa(shipped),
			truncate(r.Error, 60),
		})
	}
	return renderTable(headers, rows, aligns)
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

// displayTime reformats an API timestamp in local time.
func displayTime(value string) string {
	if value == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
