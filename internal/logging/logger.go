// Package logging defines the structured-logging interface used across the
// server together with slog and zap backed implementations.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr)
type Logger interface {
	// Debug logs verbose diagnostics such as truncated model prompts.
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

// Options selects the backend and output format.
type Options struct {
	Backend string // "slog" (default) or "zap"
	JSON    bool
	Debug   bool
}

// New builds a Logger writing to stdout.
func New(o Options) (Logger, error) {
	switch o.Backend {
	case "", "slog":
		level := slog.LevelInfo
		if o.Debug {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{Level: level}
		var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
		if o.JSON {
			h = slog.NewJSONHandler(os.Stdout, opts)
		}
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		z, err := NewZap(o.JSON, o.Debug)
		if err != nil {
			return nil, err
		}
		return NewZapLogger(z), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", o.Backend)
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.DiscardHandler))
}
