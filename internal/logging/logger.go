// Package logging builds the zerolog logger shared by the binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a logger for env. Development gets a human readable
// console writer, everything else gets JSON lines on stdout. An unknown
// level falls back to info (debug in development).
func NewLogger(env, level string) zerolog.Logger {
	return newLogger(os.Stdout, env, level)
}

// NewFileLogger appends JSON lines to path. The terminal UI owns stdout, so
// it logs here instead.
func NewFileLogger(path, level string) (zerolog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return newLogger(f, "production", level), f, nil
}

func newLogger(w io.Writer, env, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if env == "development" || env == "dev" {
		lvl = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
