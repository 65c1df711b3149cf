package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds logger configuration
type Config struct {
	Level        string // debug, info, warn, error
	Format       string // json, console
	Output       string // stdout, stderr, or file path
	EnableSource bool   // Enable source code location
	TimeFormat   string // Time format for console output

	// writer overrides Output, used by tests
	writer io.Writer
}

// Logger wraps slog.Logger
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a new logger instance
func New(config *Config) (*Logger, error) {
	level := parseLevel(config.Level)

	writer, closer, err := openOutput(config)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch config.Format {
	case "console", "":
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}

		handler = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			AddSource:  config.EnableSource,
			TimeFormat: timeFormat,
			// Colors only make sense on a terminal stream
			NoColor: closer != nil,
		})
	default:
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:     level,
			AddSource: config.EnableSource,
		})
	}

	return &Logger{Logger: slog.New(handler), closer: closer}, nil
}

func openOutput(config *Config) (io.Writer, io.Closer, error) {
	if config.writer != nil {
		return config.writer, nil, nil
	}

	switch config.Output {
	case "stderr":
		return os.Stderr, nil, nil
	case "stdout", "":
		return os.Stdout, nil, nil
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, f, nil
	}
}

// NewDefault creates a logger with default settings (console format, info level)
func NewDefault() *Logger {
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
	})

	return &Logger{Logger: slog.New(handler)}
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a logger tagged with the component name
func (l *Logger) Component(name string) *slog.Logger {
	return l.Logger.With(slog.String("component", name))
}

// With creates a new logger with additional key-value pairs
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}
