package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey int

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = iota
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}

	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}

	return Default()
}

// Ctx returns a logger from the context or the default logger.
// This is a shorter alias for FromContext.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}

// WithField adds a single field to the logger in the context.
func WithField(ctx context.Context, key string, value any) context.Context {
	logger := FromContext(ctx)
	logCtx := logger.With()

	switch v := value.(type) {
	case string:
		logCtx = logCtx.Str(key, v)
	case int:
		logCtx = logCtx.Int(key, v)
	case int64:
		logCtx = logCtx.Int64(key, v)
	case float64:
		logCtx = logCtx.Float64(key, v)
	case bool:
		logCtx = logCtx.Bool(key, v)
	case error:
		logCtx = logCtx.Str(key, v.Error())
	default:
		logCtx = logCtx.Interface(key, v)
	}

	newLogger := logCtx.Logger()
	return WithLogger(ctx, &newLogger)
}

// WithRun adds the run identifier to the logger in the context.
func WithRun(ctx context.Context, runID string) context.Context {
	return WithField(ctx, "run_id", runID)
}

// WithTable adds the asset table being processed to the logger.
func WithTable(ctx context.Context, table string) context.Context {
	return WithField(ctx, "table", table)
}

// WithRecord adds the asset record identifier to the logger.
func WithRecord(ctx context.Context, recordID string) context.Context {
	return WithField(ctx, "record_id", recordID)
}

// WithStage adds the pipeline stage name to the logger.
func WithStage(ctx context.Context, stage string) context.Context {
	return WithField(ctx, "stage", stage)
}
