// Package core provides shared building blocks for the SkillShield SDK:
// the Logger interface used across all packages and its default
// implementations.
package core

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is the interface for logging in the SDK.
// Implement this interface to plug in a custom logger (e.g., logrus, zap).
type Logger interface {
	// Debug logs a debug message
	Debug(format string, args ...interface{})

	// Info logs an info message
	Info(format string, args ...interface{})

	// Warn logs a warning message
	Warn(format string, args ...interface{})

	// Error logs an error message
	Error(format string, args ...interface{})
}

// LogLevel represents the logging level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelSilent
)

// DefaultLogger is the default logger implementation using the standard library.
type DefaultLogger struct {
	level  LogLevel
	prefix string
	logger *log.Logger
}

// NewDefaultLogger creates a new default logger writing to stderr.
func NewDefaultLogger(prefix string, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		prefix: prefix,
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetOutput sets the output writer.
func (l *DefaultLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetLevel sets the log level.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.level = level
}

// Debug logs a debug message.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	if l.level <= LogLevelDebug {
		l.log("DEBUG", format, args...)
	}
}

// Info logs an info message.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	if l.level <= LogLevelInfo {
		l.log("INFO", format, args...)
	}
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	if l.level <= LogLevelWarn {
		l.log("WARN", format, args...)
	}
}

// Error logs an error message.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	if l.level <= LogLevelError {
		l.log("ERROR", format, args...)
	}
}

func (l *DefaultLogger) log(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.logger.Printf("[%s] [%s] %s", l.prefix, level, msg)
	} else {
		l.logger.Printf("[%s] %s", level, msg)
	}
}

// NopLogger is a no-op logger that discards all messages.
type NopLogger struct{}

func (l *NopLogger) Debug(format string, args ...interface{}) {}
func (l *NopLogger) Info(format string, args ...interface{})  {}
func (l *NopLogger) Warn(format string, args ...interface{})  {}
func (l *NopLogger) Error(format string, args ...interface{}) {}

// LoggerOrNop returns the given logger, or a NopLogger if it is nil.
// Packages accept an optional Logger in their configs and normalize it
// through this helper.
func LoggerOrNop(logger Logger) Logger {
	if logger == nil {
		return &NopLogger{}
	}
	return logger
}

// LoggerFromVerbose creates a logger based on a verbose flag.
// Verbose enables debug-level output, otherwise only warnings and errors
// are emitted.
func LoggerFromVerbose(prefix string, verbose bool) Logger {
	if verbose {
		return NewDefaultLogger(prefix, LogLevelDebug)
	}
	return NewDefaultLogger(prefix, LogLevelWarn)
}

// Ensure implementations satisfy the interface
var (
	_ Logger = (*DefaultLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)
