// Package rag holds the building blocks behind docbot: document readers,
// chunking, embeddings, vector stores, the ingest registry and the page
// renderer used for citations.
//
// Logging goes through the Logger interface so callers can swap in their own
// implementation. The default one writes structured records with phuslu/log.
package rag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	plog "github.com/phuslu/log"
)

// LogLevel represents the severity level of a log message.
// Higher values indicate more verbose logging.
type LogLevel int

const (
	// LogLevelOff disables all logging
	LogLevelOff LogLevel = iota
	// LogLevelError enables only error messages
	LogLevelError
	// LogLevelWarn enables error and warning messages
	LogLevelWarn
	// LogLevelInfo enables error, warning, and info messages
	LogLevelInfo
	// LogLevelDebug enables all messages including debug
	LogLevelDebug
)

// Logger defines the interface for logging operations.
// Implementations must support multiple severity levels and
// structured logging with key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	SetLevel(level LogLevel)
}

// DefaultLogger implements Logger on top of phuslu/log. Records below the
// configured level are dropped before any formatting happens.
type DefaultLogger struct {
	mu     sync.RWMutex
	logger plog.Logger
	level  LogLevel
}

// NewLogger creates a DefaultLogger writing human readable lines to stderr.
func NewLogger(level LogLevel) Logger {
	return &DefaultLogger{
		logger: plog.Logger{
			Level:      plog.TraceLevel,
			TimeFormat: "15:04:05",
			Writer:     &plog.ConsoleWriter{Writer: os.Stderr},
		},
		level: level,
	}
}

// NewJSONLogger creates a DefaultLogger emitting one JSON object per record.
func NewJSONLogger(w io.Writer, level LogLevel) Logger {
	return &DefaultLogger{
		logger: plog.Logger{
			Level:  plog.TraceLevel,
			Writer: &plog.IOWriter{Writer: w},
		},
		level: level,
	}
}

// SetLevel updates the logging level of the DefaultLogger.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *DefaultLogger) enabled(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level <= l.level
}

func (l *DefaultLogger) Debug(msg string, keysAndValues ...interface{}) {
	if l.enabled(LogLevelDebug) {
		l.logger.Debug().KeysAndValues(keysAndValues...).Msg(msg)
	}
}

func (l *DefaultLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.logger.Info().KeysAndValues(keysAndValues...).Msg(msg)
	}
}

func (l *DefaultLogger) Warn(msg string, keysAndValues ...interface{}) {
	if l.enabled(LogLevelWarn) {
		l.logger.Warn().KeysAndValues(keysAndValues...).Msg(msg)
	}
}

func (l *DefaultLogger) Error(msg string, keysAndValues ...interface{}) {
	if l.enabled(LogLevelError) {
		l.logger.Error().KeysAndValues(keysAndValues...).Msg(msg)
	}
}

// String returns the string representation of a LogLevel.
func (l LogLevel) String() string {
	if l < LogLevelOff || l > LogLevelDebug {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return [...]string{"OFF", "ERROR", "WARN", "INFO", "DEBUG"}[l]
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// It allows LogLevel to be configured from string values in configuration
// files or environment variables.
func (l *LogLevel) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "OFF":
		*l = LogLevelOff
	case "ERROR":
		*l = LogLevelError
	case "WARN", "WARNING":
		*l = LogLevelWarn
	case "INFO":
		*l = LogLevelInfo
	case "DEBUG":
		*l = LogLevelDebug
	default:
		return fmt.Errorf("invalid log level: %s", string(text))
	}
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// GlobalLogger is the package-level logger instance used by default.
var GlobalLogger Logger

func init() {
	GlobalLogger = NewLogger(LogLevelInfo)
}

// SetGlobalLogLevel sets the log level for the global logger instance.
func SetGlobalLogLevel(level LogLevel) {
	GlobalLogger.SetLevel(level)
}

// SetGlobalLogger replaces the package-level logger.
func SetGlobalLogger(logger Logger) {
	if logger != nil {
		GlobalLogger = logger
	}
}
