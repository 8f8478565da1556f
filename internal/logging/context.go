package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPackage identifies the content package (manifest identifier or archive name).
	FieldPackage = "package"
	// FieldItemID is the standardized structured logging key for manifest item identifiers.
	FieldItemID = "item_id"
	// FieldEventType is the machine-readable event classifier.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID correlates every line written by one CLI invocation.
	FieldRunID = "run_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	packageKey contextKey = iota
	itemKey
	runKey
)

// WithPackage tags ctx with the package being processed.
func WithPackage(ctx context.Context, pkg string) context.Context {
	return context.WithValue(ctx, packageKey, strings.TrimSpace(pkg))
}

// WithItem tags ctx with the manifest item being processed.
func WithItem(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, itemKey, strings.TrimSpace(itemID))
}

// WithRunID tags ctx with the invocation correlation id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey, strings.TrimSpace(runID))
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if pkg, ok := stringFromContext(ctx, packageKey); ok {
		fields = append(fields, slog.String(FieldPackage, pkg))
	}
	if id, ok := stringFromContext(ctx, itemKey); ok {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if rid, ok := stringFromContext(ctx, runKey); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
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
