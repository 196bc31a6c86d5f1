// Package logging provides structured logging using Go's log/slog.
//
// Configuration is controlled via environment variables:
//   - TAGNAV_LOG_LEVEL: debug, info, warn, error (default: info)
//   - TAGNAV_LOG_FORMAT: text, json (default: text)
//
// Logs always go to stderr (or a file for the daemon). Stdout is reserved for
// command output and the MCP protocol stream.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	envLevel  = "TAGNAV_LOG_LEVEL"
	envFormat = "TAGNAV_LOG_FORMAT"
)

// Log levels re-exported for convenience
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config holds logging configuration
type Config struct {
	Level  slog.Level
	Format string    // "text" or "json"
	Output io.Writer // defaults to os.Stderr
	Source string    // component name attached to every record
}

// DefaultConfig returns info-level text logging to stderr.
func DefaultConfig(source string) Config {
	return Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
		Source: source,
	}
}

// ParseLevel maps a level name to a slog level. Unknown names report false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// LoadConfigFromEnv returns DefaultConfig with TAGNAV_LOG_LEVEL and
// TAGNAV_LOG_FORMAT applied.
func LoadConfigFromEnv(source string) Config {
	cfg := DefaultConfig(source)

	if level, ok := ParseLevel(os.Getenv(envLevel)); ok {
		cfg.Level = level
	}

	if format := os.Getenv(envFormat); format != "" {
		cfg.Format = strings.ToLower(format)
	}

	return cfg
}

// New creates a logger for cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler).With("source", cfg.Source)
}

// Default returns a logger configured from the environment.
// Entry points call this once and pass the logger down.
func Default(source string) *slog.Logger {
	return New(LoadConfigFromEnv(source))
}

// Nop returns a logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
