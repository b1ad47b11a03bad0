// Package logging builds the process-wide zerolog.Logger used across the
// SDK's ambient components (server, sinks, config loading).
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is constructed.
type Config struct {
	// Level is one of "trace", "debug", "info", "warn", "error".
	Level string
	// Format is "json" for machine-readable output or "console" for a
	// human-friendly, colorized writer (intended for local development).
	Format string
}

// New builds a zerolog.Logger per config, defaulting to info/json for any
// field the caller leaves empty or unrecognized.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output zerolog.ConsoleWriter
	var logger zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Str("service", "telemetry-sdk").Logger()
}
