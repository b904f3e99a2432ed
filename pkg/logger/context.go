package logger

import "context"

type ctxKey struct{}

// LoggerCtxKey is the context key under which request-scoped loggers travel.
var LoggerCtxKey = ctxKey{}

// ContextWithLogger returns a child context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, logger)
}

// FromContext returns the logger stored in ctx, falling back to the default
// logger when the context carries none (or carries the wrong type).
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(LoggerCtxKey).(Logger); ok && logger != nil {
			return logger
		}
	}
	return GetDefault()
}
