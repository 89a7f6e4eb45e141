package gribdex

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with gribdex-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// WithRun adds a reference-datetime field to the logger.
func (l *Logger) WithRun(t time.Time) *Logger {
	return &Logger{
		Logger: l.Logger.With("reference_datetime", t.Format(time.RFC3339)),
	}
}

// LogFileIndexed logs the outcome of ingesting one sidecar file.
func (l *Logger) LogFileIndexed(ctx context.Context, path string, records int, err error) {
	if err != nil {
		l.WarnContext(ctx, "sidecar file skipped",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "sidecar file indexed",
			"path", path,
			"records", records,
		)
	}
}

// LogBuild logs the completion of an index build.
func (l *Logger) LogBuild(ctx context.Context, runs, files, entries, skipped int) {
	if skipped > 0 {
		l.WarnContext(ctx, "index build completed with skipped files",
			"runs", runs,
			"files", files,
			"entries", entries,
			"skipped", skipped,
		)
	} else {
		l.InfoContext(ctx, "index build completed",
			"runs", runs,
			"files", files,
			"entries", entries,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot written",
			"name", name,
			"bytes", bytes,
		)
	}
}

// LogResolve logs a resolution.
func (l *Logger) LogResolve(ctx context.Context, ranges, missing int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "resolve failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "resolve completed",
			"ranges", ranges,
			"missing", missing,
		)
	}
}
