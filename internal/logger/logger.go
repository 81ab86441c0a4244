package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"infinitiflow/internal/config"
)

var (
	singleton *slog.Logger
	once      sync.Once
)

// New builds a logger writing to w with the level and format from cfg.
// Unknown levels fall back to info and unknown formats to JSON.
func New(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the process logger from the provided config.
// It is thread-safe and idempotent - the first call wins,
// and subsequent calls return the same logger instance.
func Init(cfg config.Config) (*slog.Logger, error) {
	once.Do(func() {
		singleton = New(cfg, os.Stdout)
		slog.SetDefault(singleton)
	})

	return singleton, nil
}

// L returns the process logger, or slog.Default() before Init.
func L() *slog.Logger {
	if singleton == nil {
		return slog.Default()
	}
	return singleton
}
