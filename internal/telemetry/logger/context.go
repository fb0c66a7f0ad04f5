// Package logger provides structured logging for pathnet.
package logger

import "context"

type contextKey string

const (
	loggerKey  contextKey = "pathnet.logger"
	runIDKey   contextKey = "pathnet.run_id"
	stateIDKey contextKey = "pathnet.state_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRunID tags the context with the verification run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithStateID tags the context with the search state being processed.
func WithStateID(ctx context.Context, stateID uint64) context.Context {
	return context.WithValue(ctx, stateIDKey, stateID)
}

// StateIDFromContext extracts the search state ID from context.
func StateIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(stateIDKey).(uint64)
	return id, ok
}

// L is a shorthand for FromContext that also enriches the logger
// with the run ID and search state ID from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if runID := RunIDFromContext(ctx); runID != "" {
		l = l.With("run_id", runID)
	}
	if stateID, ok := StateIDFromContext(ctx); ok {
		l = l.With("state_id", stateID)
	}
	return l
}
