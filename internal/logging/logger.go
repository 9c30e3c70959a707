// Package logging provides a small component-scoped logging facade used
// throughout the orchestrator. It wraps log/slog so every subsystem logs
// through the same structured sink while keeping call sites printf-style,
// matching the rest of the error-handling and retry packages.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Logger is the minimal printf-style logging capability consumed by the
// errors, store and graph packages. Keeping it an interface lets
// callers pass nil-safe no-op loggers in tests.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// slogLogger adapts a *slog.Logger to the Logger interface, tagging every
// record with the owning component name.
type slogLogger struct {
	component string
	base      *slog.Logger
}

// NewComponentLogger returns a Logger that prefixes every record with
// component and writes through the process-wide slog handler.
func NewComponentLogger(component string) Logger {
	return &slogLogger{component: component, base: slog.Default()}
}

// FromBase builds a component logger on top of a caller-supplied slog
// handler, used by main() to route all components through one configured
// sink (text or JSON, level-filtered).
func FromBase(base *slog.Logger, component string) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &slogLogger{component: component, base: base}
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, format string, args ...any) {
	if l == nil || l.base == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.base.Log(ctx, level, msg, slog.String("component", l.component))
}

func (l *slogLogger) Debug(format string, args ...any) { l.log(context.Background(), slog.LevelDebug, format, args...) }
func (l *slogLogger) Info(format string, args ...any)  { l.log(context.Background(), slog.LevelInfo, format, args...) }
func (l *slogLogger) Warn(format string, args ...any)  { l.log(context.Background(), slog.LevelWarn, format, args...) }
func (l *slogLogger) Error(format string, args ...any) { l.log(context.Background(), slog.LevelError, format, args...) }

// nopLogger discards everything; returned by OrNop for nil loggers so
// callers never need a nil check before logging.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop is a shared no-op logger, handy as a zero-value default in tests.
var Nop Logger = nopLogger{}

// IsNil reports whether logger is untyped nil or a typed nil pointer hiding
// behind the interface -- both are unsafe to call directly.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	if l, ok := logger.(*slogLogger); ok {
		return l == nil
	}
	return false
}

// OrNop returns logger unless it is nil in any sense, in which case it
// returns Nop so callers can log unconditionally.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop
	}
	return logger
}

// NewProcessLogger configures the process-wide slog default handler from a
// level name ("debug", "info", "warn", "error") and format ("json" or
// "text"), mirroring the orchestrator's environment-driven configuration.
func NewProcessLogger(levelName, format string) *slog.Logger {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
