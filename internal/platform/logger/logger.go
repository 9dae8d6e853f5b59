package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/omnimedia-api/internal/config"
)

// Setup initializes the application's logging system from configuration.
// It creates a structured JSON logger on stdout with the configured level
// and installs it as the slog default.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	logger := New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger, nil
}

// New creates a JSON logger writing to w. An unknown level falls back to
// info and is reported once on stderr.
func New(w io.Writer, level string) *slog.Logger {
	parsed, ok := ParseLevel(level)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", level,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parsed})
	return slog.New(handler)
}

// ParseLevel maps a case-insensitive level name to a slog.Level.
// The boolean is false, and the level info, for unrecognized names.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
