// Package logging provides structured logging helpers built on log/slog,
// plus context propagation so that per-cycle loggers travel with the
// context through the fetch/decode/persist pipeline.
package logging

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a copy of ctx carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default() if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// LogOperation records a named operation at info level.
func LogOperation(logger *slog.Logger, operation string, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(operation, args...)
}

// LogError records an error with its message and cause.
func LogError(logger *slog.Logger, msg string, err error, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, append([]any{slog.Any("error", err)}, args...)...)
}

// SafeCloseWithLogging closes c and logs a warning if closing fails.
// Intended for use in defer statements where the close error would
// otherwise be silently discarded.
func SafeCloseWithLogging(c io.Closer, logger *slog.Logger, name string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to close resource",
			slog.String("resource", name),
			slog.Any("error", err))
	}
}

// SafeRollbackWithLogging rolls back tx and logs a warning if the rollback
// fails for any reason other than the transaction already being finished.
// Safe to defer unconditionally: a committed transaction reports ErrTxDone,
// which is ignored.
func SafeRollbackWithLogging(tx *sql.Tx, logger *slog.Logger, operation string) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to roll back transaction",
			slog.String("operation", operation),
			slog.Any("error", err))
	}
}
