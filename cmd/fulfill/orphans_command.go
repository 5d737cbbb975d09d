package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fulfill/internal/api"
)

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	var includeResolved bool
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List outbound orders created but never confirmed",
		Long: "Orphaned orders were created in the warehouse system but the picking saga\n" +
			"failed afterwards. They need manual reconciliation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.requireLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if path := strings.TrimSpace(xlsxPath); path != "" {
				n, err := store.ExportOrphansXLSX(cmd.Context(), path, includeResolved)
				if err != nil {
					return fmt.Errorf("export orphans: %w", err)
				}
				fmt.Fprintf(out, "Wrote %d orphaned orders to %s\n", n, path)
				return nil
			}

			orphans, err := store.ListOrphans(cmd.Context(), includeResolved)
			if err != nil {
				return fmt.Errorf("list orphans: %w", err)
			}
			if len(orphans) == 0 {
				fmt.Fprintln(out, "No orphaned orders")
				return nil
			}
			fmt.Fprintln(out, renderOrphansTable(api.FromOrphans(orphans), includeResolved))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&includeResolved, "all", "a", false, "Include resolved orders")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the list to an Excel workbook instead of printing it")
	cmd.AddCommand(newOrphansResolveCommand(ctx))
	return cmd
}

func newOrphansResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <so-no>...",
		Short: "Mark orphaned orders as reconciled",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.requireLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			now := time.Now()
			var missing []string
			for _, soNo := range args {
				ok, err := store.MarkResolved(cmd.Context(), strings.TrimSpace(soNo), now)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", soNo, err)
				}
				if !ok {
					missing = append(missing, soNo)
					continue
				}
				fmt.Fprintf(out, "Resolved %s\n", soNo)
			}
			if len(missing) > 0 {
				return fmt.Errorf("no open orphan for %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func renderOrphansTable(orphans []api.Orphan, includeResolved bool) string {
	headers := []string{"SO", "SN", "Category", "Step", "First seen", "Last seen", "Error"}
	if includeResolved {
		headers = append(headers, "Resolved")
	}
	rows := make([][]string, 0, len(orphans))
	for _, o := range orphans {
		row := []string{
			o.SONo,
			o.SN,
			o.Category,
			o.Step,
			displayTime(o.FirstSeen),
			displayTime(o.LastSeen),
			truncate(o.Error, 50),
		}
		if includeResolved {
			row = append(row, displayTime(o.ResolvedAt))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, nil)
}
