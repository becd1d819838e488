// Package log configures the process-wide slog logger. Diagnostics go to
// stderr so stdout carries only the evaluation report.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs logs in human-readable key=value form.
	FormatText Format = iota
	// FormatJSON outputs one JSON object per record.
	FormatJSON
)

// String returns the string representation of the format.
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses a string into a Format. Unknown values are text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// ParseLevel parses a string into a slog level. Unknown values are warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Config holds configuration for the logger.
type Config struct {
	Level  slog.Level
	Format Format
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource includes source file and line number in records.
	AddSource bool
}

// DefaultConfig logs warnings and errors as text to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelWarn,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// New builds a logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
}

// Setup builds a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}
