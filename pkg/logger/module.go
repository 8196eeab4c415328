package logger

import (
	"log/slog"
	"os"

	"github.com/alex-galey/restricted-domains/pkg/config"
	"go.uber.org/fx"
)

// NewLogBuffer creates the ring buffer holding recent log lines.
func NewLogBuffer(cfg *config.ServerConfig) *RingBuffer {
	return NewRingBuffer(cfg.LogBufferSize)
}

// NewSlogLogger builds the process logger. Records go to stderr, leaving
// stdout to the stdio transport, and are copied into buffer.
func NewSlogLogger(cfg *config.ServerConfig, buffer *RingBuffer) *slog.Logger {
	var handler slog.Handler

	// Configure log level
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(newBufferingHandler(handler, buffer, opts))
}

var Module = fx.Module("logger",
	fx.Provide(
		NewLogBuffer,
		NewSlogLogger,
	),
)
