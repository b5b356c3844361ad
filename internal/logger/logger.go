// Package logger builds the *slog.Logger values used by the instruct CLI and HTTP server.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New creates a logger. Without options it writes Info and above as logfmt-style text to stderr.
func New(opts ...Option) *slog.Logger {
	s := &settings{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(s)
	}

	var w io.Writer = os.Stderr
	switch len(s.writers) {
	case 0:
	case 1:
		w = s.writers[0]
	default:
		w = io.MultiWriter(s.writers...)
	}

	switch {
	case s.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: s.level, AddSource: s.source}))
	case s.pretty:
		return slog.New(log.NewWithOptions(w, log.Options{
			Level:           charmLevel(s.level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			ReportCaller:    s.source,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: s.level, AddSource: s.source}))
	}
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func charmLevel(level slog.Level) log.Level {
	switch {
	case level <= slog.LevelDebug:
		return log.DebugLevel
	case level <= slog.LevelInfo:
		return log.InfoLevel
	case level <= slog.LevelWarn:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}
