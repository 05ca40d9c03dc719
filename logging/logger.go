package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is a user facing level decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// ParseLevel converts a case-insensitive level name (debug, info, warn,
// error) into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	return l.slog().String()
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger defines the minimal logging interface for agentcrew.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// With returns a logger that adds args to every record. Loggers with a
// native With method (SlogAdapter, StructuredLogger) use it; others are
// wrapped. A nil logger yields a NoOpLogger.
func With(l Logger, args ...any) Logger {
	switch v := l.(type) {
	case nil:
		return NoOpLogger{}
	case NoOpLogger:
		return v
	case *StructuredLogger:
		return v.With(args...)
	case *SlogAdapter:
		return &SlogAdapter{Logger: v.Logger.With(args...)}
	default:
		return &prefixLogger{logger: l, attrs: args}
	}
}

type prefixLogger struct {
	logger Logger
	attrs  []any
}

func (l *prefixLogger) with(args []any) []any {
	out := make([]any, 0, len(l.attrs)+len(args))
	return append(append(out, l.attrs...), args...)
}

func (l *prefixLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.with(args)...) }
func (l *prefixLogger) Info(msg string, args ...any)  { l.logger.Info(msg, l.with(args)...) }
func (l *prefixLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, l.with(args)...) }
func (l *prefixLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.with(args)...) }

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// StructuredLogger is the logger used by the agentcrew binaries: a slog
// logger with component, session and run scoping. Scoping returns a new
// logger and leaves the receiver untouched.
type StructuredLogger struct {
	logger *slog.Logger
	level  LogLevel
}

// LoggerConfig configures construction of a StructuredLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// NewLogger builds a StructuredLogger. A nil config logs JSON at info level
// to stderr.
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = &LoggerConfig{Level: LogLevelInfo, Format: "json"}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	l := &StructuredLogger{logger: slog.New(handler), level: cfg.Level}
	if cfg.Component != "" {
		l = l.WithComponent(cfg.Component)
	}

	return l
}

// NewSlogLogger creates a StructuredLogger writing to stderr.
func NewSlogLogger(level LogLevel, format string, addSource bool) *StructuredLogger {
	if format == "" {
		format = "json"
	}
	return NewLogger(&LoggerConfig{Level: level, Format: format, AddSource: addSource})
}

// Level returns the minimum level that is written.
func (l *StructuredLogger) Level() LogLevel { return l.level }

// With returns a logger adding args to every record.
func (l *StructuredLogger) With(args ...any) *StructuredLogger {
	return &StructuredLogger{logger: l.logger.With(args...), level: l.level}
}

// WithComponent sets the logical component (agent, supervisor, runner, store).
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	return l.With("component", c)
}

// WithSession attaches session and run identifiers.
func (l *StructuredLogger) WithSession(sessionID, runID string) *StructuredLogger {
	return l.With("session_id", sessionID, "run_id", runID)
}

// Debug logs at debug level.
func (l *StructuredLogger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (l *StructuredLogger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *StructuredLogger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (l *StructuredLogger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, args...)
}

// Slog returns the underlying *slog.Logger.
func (l *StructuredLogger) Slog() *slog.Logger { return l.logger }

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
