package logger

import (
	"log/slog"
	"os"

	"pkgdeploy-cli/port/logger_port"
)

// Logger wraps slog.Logger behind the logger port
type Logger struct {
	*slog.Logger
}

// Ensure Logger satisfies the logger port
var _ logger_port.LoggerPort = (*Logger)(nil)

// NewLogger creates a new logger with structured logging
func NewLogger() *Logger {
	return NewLoggerWithLevel(slog.LevelInfo)
}

// NewLoggerWithLevel creates a new logger with specified log level
func NewLoggerWithLevel(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

// Common log levels
const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
)

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) logger_port.LoggerPort {
	return &Logger{Logger: l.Logger.With(slog.Any(key, value))}
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(msg string, context map[string]interface{}) {
	l.Logger.Info(msg, contextArgs(context)...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(msg string, context map[string]interface{}) {
	l.Logger.Error(msg, contextArgs(context)...)
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(msg string, context map[string]interface{}) {
	l.Logger.Warn(msg, contextArgs(context)...)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(msg string, context map[string]interface{}) {
	l.Logger.Debug(msg, contextArgs(context)...)
}

func contextArgs(context map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(context)*2)
	for key, value := range context {
		args = append(args, slog.Any(key, value))
	}
	return args
}
