package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging settings.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format selects the output encoding: json (default) or text.
	Format string `yaml:"format"`

	// Output selects the destination: stdout (default), stderr or
	// discard.
	Output string `yaml:"output"`

	// AddSource includes the file:line of the call site in each record.
	AddSource bool `yaml:"add_source"`
}

// Logger is the structured logger used across smartdb-core.
//
// It embeds slog.Logger, so the full slog API is available, with
// service and version fields attached to every record.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from cfg. The version string is attached to
// every record alongside the service name.
func New(cfg Config, version string) *Logger {
	handler := handlerFor(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "smartdb"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// handlerFor assembles the slog handler described by cfg.
func handlerFor(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	out := writerFor(cfg.Output)
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// writerFor maps an output name to its destination. Unknown names
// fall back to stdout.
func writerFor(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	default:
		return os.Stdout
	}
}

// parseLevel converts a level name to slog.Level, defaulting to info
// for anything unrecognised.
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

// With returns a new Logger carrying additional default attributes.
//
// Example:
//
//	poolLogger := logger.With("component", "pool")
//	poolLogger.Info("created") // Includes component=pool
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger for use before configuration is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(Config{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
