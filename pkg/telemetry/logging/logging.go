// Package logging builds the slog loggers used across the SDK.
//
// Components default to slog.Default() scoped with a "component" attribute;
// this package exists for applications that want the SDK's diagnostics on a
// dedicated logger with an explicit level and format.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format is the output format for log records.
type Format string

const (
	// FormatJSON outputs one JSON object per record.
	FormatJSON Format = "json"
	// FormatText outputs logfmt-style key=value records.
	FormatText Format = "text"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	// Empty means "info".
	Level string

	// Format is "json" or "text". Empty means "json".
	Format string

	// AddSource includes file:line in records.
	AddSource bool

	// Writer is the output destination, defaulting to os.Stderr.
	Writer io.Writer
}

// New builds a *slog.Logger from the configuration. Unknown levels or
// formats are construction errors rather than silent fallbacks.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), nil
}

// ParseLevel parses a level string into a slog.Level. The empty string is
// info.
func ParseLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO", "":
		return slog.LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", raw)
	}
}

func parseFormat(raw string) (Format, error) {
	switch raw {
	case "json", "JSON", "":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", raw)
	}
}
