// Package log provides the structured logging interface used across the solver.
//
// The interface is slog-compatible: messages carry alternating key/value fields, and the
// keys in attributes.go keep field names consistent between packages. The default provider
// writes JSON through zerolog; SetProvider swaps it, for instance for a TestLoggerProvider.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("splicing").With(
//	    log.SupportSizeKey, 5,
//	    log.LambdaKey, 0.0,
//	)
//	logger.Debug("exchange accepted",
//	    log.ExchangeKey, 2,
//	    log.LossKey, 12.7,
//	)
package log

import (
	"context"
)

// Logger is a structured logger with key/value fields.
type Logger interface {
	// Debug logs diagnostic detail such as per-iteration losses.
	Debug(msg string, fields ...any)

	// Info logs operational milestones such as a finished fit.
	Info(msg string, fields ...any)

	// Warn logs recoverable problems such as non-convergence.
	Warn(msg string, fields ...any)

	// Error logs failures. If the first field is an error it is attached
	// under the "error" key together with its stack trace.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every message.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be written.
	// Use it to skip building expensive fields:
	//
	//	if logger.Enabled(ctx, log.LevelDebug) {
	//	    logger.Debug("scores", "backward", backward)
	//	}
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level with slog-compatible values.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers and owns their level.
type LoggerProvider interface {
	// GetLogger returns the default logger.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for all loggers of this provider.
	SetLevel(level Level)
}
