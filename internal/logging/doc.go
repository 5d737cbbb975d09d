// Package logging assembles structured slog loggers and formatting helpers used
// across fulfill.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so backend and coordinator code can tag log
// lines with the run ID, backend system, order category, and serial number
// without threading those values through every call.
package logging
