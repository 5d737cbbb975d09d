package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	systemKey   contextKey = "system"
	categoryKey contextKey = "category"
	snKey       contextKey = "sn"
)

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithSystem annotates context with the backend system name (workorder, asd, logistics).
func WithSystem(ctx context.Context, system string) context.Context {
	return withString(ctx, systemKey, system)
}

// SystemFromContext returns the backend system name if present.
func SystemFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, systemKey)
}

// WithCategory annotates context with the product category being processed.
func WithCategory(ctx context.Context, category string) context.Context {
	return withString(ctx, categoryKey, category)
}

// CategoryFromContext returns the product category if present.
func CategoryFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, categoryKey)
}

// WithSN annotates context with the serial number of the unit in flight.
func WithSN(ctx context.Context, sn string) context.Context {
	return withString(ctx, snKey, sn)
}

// SNFromContext returns the serial number if present.
func SNFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, snKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
