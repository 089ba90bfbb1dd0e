package wikipack

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with wikipack-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithComponent tags the logger with the component that emits records.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogSearch logs an exact or partial search.
func (l *Logger) LogSearch(ctx context.Context, mode string, words []string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"mode", mode,
			"words", words,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"mode", mode,
			"words", words,
			"results", results,
		)
	}
}

// LogGetItem logs a content lookup. Misses are logged at debug level;
// they are routine for a web front end.
func (l *Logger) LogGetItem(ctx context.Context, kind, name string, size int, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "item served",
			"kind", kind,
			"name", name,
			"bytes", size,
		)
	case isNotFound(err):
		l.DebugContext(ctx, "item not found",
			"kind", kind,
			"name", name,
		)
	default:
		l.ErrorContext(ctx, "item lookup failed",
			"kind", kind,
			"name", name,
			"error", err,
		)
	}
}

// LogBuild logs the outcome of one build stage.
func (l *Logger) LogBuild(ctx context.Context, stage string, items int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"stage", stage,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build stage completed",
			"stage", stage,
			"items", items,
		)
	}
}

// LogOpen logs opening a library.
func (l *Logger) LogOpen(ctx context.Context, language string, documents int, images bool) {
	l.InfoContext(ctx, "library opened",
		"language", language,
		"documents", documents,
		"images", images,
	)
}
