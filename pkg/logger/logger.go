// Package logger provides structured logging for Velcro. Stdout is reserved
// for the hook response protocol, so all diagnostics go to a log file or to
// stderr, never stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger provides the structured logging interface used across the module.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional key-value pairs.
	With(keysAndValues ...any) Logger
}

// Level represents the log level.
type Level string

const (
	// LevelDebug represents debug-level logging.
	LevelDebug Level = "DEBUG"

	// LevelInfo represents info-level logging.
	LevelInfo Level = "INFO"

	// LevelError represents error-level logging.
	LevelError Level = "ERROR"

	// LogFilePermissions defines the file permissions for log files
	// (owner read/write only).
	LogFilePermissions = 0o600
)

// FileLogger implements Logger with append-only file output.
type FileLogger struct {
	out       io.Writer
	baseKVs   []any
	debugMode bool
	traceMode bool
}

// NewFileLogger creates a FileLogger that appends to the given log file.
func NewFileLogger(filePath string, debugMode, traceMode bool) (*FileLogger, error) {
	//nolint:gosec // log path comes from trusted configuration
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileLogger{
		out:       file,
		debugMode: debugMode,
		traceMode: traceMode,
	}, nil
}

// NewFileLoggerWithWriter creates a FileLogger with a custom writer.
func NewFileLoggerWithWriter(out io.Writer, debugMode, traceMode bool) *FileLogger {
	return &FileLogger{
		out:       out,
		debugMode: debugMode,
		traceMode: traceMode,
	}
}

// Debug logs debug-level messages. Emitted only in trace mode.
func (l *FileLogger) Debug(msg string, keysAndValues ...any) {
	if !l.traceMode {
		return
	}

	l.log(LevelDebug, msg, keysAndValues...)
}

// Info logs info-level messages. Emitted in debug or trace mode.
func (l *FileLogger) Info(msg string, keysAndValues ...any) {
	if !l.debugMode && !l.traceMode {
		return
	}

	l.log(LevelInfo, msg, keysAndValues...)
}

// Error logs error-level messages. Always emitted.
func (l *FileLogger) Error(msg string, keysAndValues ...any) {
	l.log(LevelError, msg, keysAndValues...)
}

// With returns a new logger with additional base key-value pairs.
//
//nolint:ireturn // With returns an interface for chaining
func (l *FileLogger) With(keysAndValues ...any) Logger {
	newKVs := make([]any, len(l.baseKVs)+len(keysAndValues))
	copy(newKVs, l.baseKVs)
	copy(newKVs[len(l.baseKVs):], keysAndValues)

	return &FileLogger{
		out:       l.out,
		baseKVs:   newKVs,
		debugMode: l.debugMode,
		traceMode: l.traceMode,
	}
}

// log writes a single log line: "timestamp LEVEL msg key=value ...".
func (l *FileLogger) log(level Level, msg string, keysAndValues ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	var builder strings.Builder

	builder.WriteString(timestamp)
	builder.WriteByte(' ')
	builder.WriteString(string(level))
	builder.WriteByte(' ')
	builder.WriteString(msg)

	appendKVs(&builder, l.baseKVs)
	appendKVs(&builder, keysAndValues)

	builder.WriteByte('\n')

	_, _ = io.WriteString(l.out, builder.String())
}

// appendKVs appends key-value pairs to the builder, quoting values that
// contain whitespace.
func appendKVs(builder *strings.Builder, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		val := fmt.Sprintf("%v", keysAndValues[i+1])

		builder.WriteByte(' ')
		builder.WriteString(key)
		builder.WriteByte('=')

		if strings.ContainsAny(val, " \t\n\"") {
			builder.WriteString(fmt.Sprintf("%q", val))
		} else {
			builder.WriteString(val)
		}
	}
}

// NoOpLogger discards all log output. Used as a default and in tests.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug discards the message.
func (*NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (*NoOpLogger) Info(string, ...any) {}

// Error discards the message.
func (*NoOpLogger) Error(string, ...any) {}

// With returns the same no-op logger.
//
//nolint:ireturn // With returns an interface for chaining
func (l *NoOpLogger) With(...any) Logger {
	return l
}
