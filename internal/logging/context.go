package logging

import (
	"context"
	"log/slog"

	"fulfill/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one coordinator pass.
	FieldRunID = "run_id"
	// FieldSystem names the backend system (workorder, asd, logistics).
	FieldSystem = "system"
	// FieldCategory names the order category (machine, board).
	FieldCategory = "category"
	// FieldSN is the device serial number a log line concerns.
	FieldSN = "sn"
	// FieldSONo is a warehouse sales-order number.
	FieldSONo = "so_no"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if system, ok := services.SystemFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSystem, system))
	}
	if category, ok := services.CategoryFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCategory, category))
	}
	if sn, ok := services.SNFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSN, sn))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
