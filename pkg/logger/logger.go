// Package logger builds the *slog.Logger instances used across tonearm.
//
// Three handler flavors cover the module's needs: slog's text handler for
// plain output, slog's JSON handler for machine-readable logs (the ingest
// log file), and charmbracelet/log for colorized CLI output.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	writer io.Writer
}

// New creates a *slog.Logger configured by the given options. With no
// options it logs text at Info level to stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, writer: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}

	var handler slog.Handler
	switch {
	case c.pretty:
		handler = charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level: charmLevel(c.level),
		})
	case c.json:
		handler = slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	default:
		handler = slog.NewTextHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	}

	return slog.New(handler)
}

// Nop returns a logger that discards everything. Constructors take this as
// their default so callers never nil-check.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func charmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
