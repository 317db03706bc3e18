// Package logging provides structured logging for the syncd daemon.
//
// It wraps log/slog with component-based loggers so every subsystem tags
// its entries consistently:
//
//	log := logging.Component("engine")
//	log.Info("run finished", "job", name, "created", n)
package logging

import (
	"log/slog"
	"os"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger. If jsonFormat is true, entries are
// emitted as JSON; otherwise human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// Component returns a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With("component", name)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
