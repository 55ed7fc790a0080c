package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/config"
)

// Logger is the daemon-wide structured logger.
//
// It embeds *slog.Logger, so the full slog API (Info, Warn, Error,
// Debug, attribute groups) is available directly. Safe for concurrent
// use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the daemon
// configuration. Format selects a JSON or text handler, output picks
// the destination stream, and every record carries the service name
// and build version as default fields.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg.Format, writerFor(cfg.Output), levelFor(cfg.Level))

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "domobridge"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a JSON/stdout/info logger for use during early
// startup, before the configuration file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// With returns a child logger carrying additional default attributes.
//
//	mqttLog := log.With("component", "mqtt")
//	mqttLog.Info("connected") // includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// newHandler constructs the slog handler for the requested format.
// Anything other than "text" gets the JSON handler; production
// deployments are expected to ship JSON to their collector.
func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// writerFor maps the configured output name to a stream. Unrecognised
// values fall back to stdout rather than erroring; logging must never
// stop the daemon from starting.
func writerFor(output string) io.Writer {
	if strings.ToLower(output) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// levelFor parses a configured level name, defaulting to info.
func levelFor(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
