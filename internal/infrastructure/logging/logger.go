package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rgoodwin/hadeck/internal/infrastructure/config"
)

// Logger wraps slog.Logger with hadeck-specific defaults.
//
// It provides structured logging with default fields and level-based
// filtering. All methods are safe for concurrent use from multiple
// goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger from the logging configuration.
//
// It configures the output format (JSON for production, text for
// development), the minimum level, the output destination, and the
// default service/version fields.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hadeck"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error. Defaults to info.
func parseLevel(level string) slog.Level {
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

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	hassLogger := logger.With("component", "hass")
//	hassLogger.Info("connected") // Includes component=hass
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a logger for use before configuration is loaded.
//
// It writes JSON to stdout at info level and should only be used during
// early startup.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
