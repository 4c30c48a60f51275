// Package log provides the logging infrastructure for askaql.
//
// Loggers are injected via constructors rather than pulled from globals:
// each component receives a log.Logger and may add context via With().
// Tests use NewNop() or NewWithWriter() with a buffer.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger so components depend on the
// standard library type directly without a custom interface.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a logger with the given configuration, writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w.
// Useful for tests that assert on log output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Tests only; production
// code should always use New() or NewWithWriter().
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
