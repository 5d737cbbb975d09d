package preflight

import (
	"context"

	"fulfill/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config: writable
// directories, backend reachability and credentials, OCR keys, notification
// settings, and the run ledger when enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cookie directory", cfg.Paths.CookieDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	backends := []struct {
		name, url, user, password string
	}{
		{"Work-order tracker", cfg.WorkOrder.BaseURL, cfg.WorkOrder.Username, cfg.WorkOrder.Password},
		{"Warehouse system", cfg.ASD.BaseURL, cfg.ASD.Username, cfg.ASD.Password},
		{"Logistics system", cfg.Logistics.BaseURL, cfg.Logistics.Username, cfg.Logistics.Password},
	}
	for _, b := range backends {
		results = append(results, CheckBackend(ctx, b.name, b.url, b.user, b.password))
	}

	results = append(results, CheckOCR(cfg), CheckNotifications(cfg))
	if cfg.Ledger.Enabled {
		results = append(results, CheckLedger(ctx, cfg))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
