// Package logging defines a minimal structured-logging interface used across
// the project, with slog and zerolog implementations.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs a diagnostic message.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Output formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a Logger writing to w. The "console" format uses zerolog's
// human-readable writer; anything else falls back to slog's JSON handler.
// Unknown levels are treated as "info".
func New(format, level string, w io.Writer) Logger {
	if strings.EqualFold(format, FormatConsole) {
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w}).
			Level(zerologLevel(level)).
			With().Timestamp().Logger()
		return NewZerologLogger(zl)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	return NewSlogLogger(slog.New(h))
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zerologLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
