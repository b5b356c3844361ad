package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*settings)

type settings struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// WithDebug lowers the level to Debug. Render traces are only logged at this level.
func WithDebug(debug bool) Option {
	return func(s *settings) {
		s.level = slog.LevelInfo
		if debug {
			s.level = slog.LevelDebug
		}
	}
}

// WithLevel sets the minimum level directly.
func WithLevel(level slog.Level) Option {
	return func(s *settings) {
		s.level = level
	}
}

// WithPretty selects the charmbracelet/log handler for terminal output.
func WithPretty(pretty bool) Option {
	return func(s *settings) {
		s.pretty = pretty
	}
}

// WithJSON selects slog's JSON handler. It takes precedence over WithPretty.
func WithJSON(json bool) Option {
	return func(s *settings) {
		s.json = json
	}
}

// WithWriter replaces the output writer. The default is os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writers = []io.Writer{w}
	}
}

// WithWriters writes every record to all of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(s *settings) {
		s.writers = ws
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(s *settings) {
		s.source = source
	}
}
