// Package api defines the wire-format types served by the daemon's HTTP API
// and a small client for them. It translates coordinator reports and ledger
// records into transport-friendly DTOs so the CLI can render them without
// touching the ledger directly.
//
// # Key Types
//
// DaemonStatus: daemon running state, lock path, next run, the last report,
// and the open orphan count.
//
// Run / CategoryCounts: one stored run with its per-category counts.
//
// Orphan: an outbound order awaiting manual reconciliation.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// are omitted when zero. Durations are reported in milliseconds.
package api
