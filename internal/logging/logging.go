// Package logging constructs the structured logger (component L) every
// other component logs through, each scoped with a "component" field.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/config"
)

// New builds the root logger from Settings, with the LOCKD_LOG_LEVEL
// environment variable taking precedence so a CLI invocation can raise
// verbosity without editing the settings file.
func New(settings config.Settings) zerolog.Logger {
	level := settings.LogLevel
	if env := os.Getenv("LOCKD_LOG_LEVEL"); env != "" {
		level = env
	}

	zerolog.SetGlobalLevel(parseLevel(level))

	var w zerolog.ConsoleWriter
	if settings.LogFormat == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(w).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
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

// Component scopes log to a named component, attaching a "component"
// field so log lines can be filtered per subsystem.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
