package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	runIDKey  contextKey = "run_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, a no-op logger if absent
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// WithRunID stores the sync run id in ctx and attaches a logger carrying it
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, runIDKey, runID)
	enriched := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enriched), enriched
}

// GetRunID retrieves the sync run id from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		return runID
	}
	return ""
}

// TraceFields returns trace_id and span_id fields for the span in ctx
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
