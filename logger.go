package docbot

import (
	"github.com/teilomillet/docbot/rag"
)

// LogLevel represents the severity of a log message
type LogLevel = rag.LogLevel

// Log levels
const (
	LogLevelOff   = rag.LogLevelOff
	LogLevelError = rag.LogLevelError
	LogLevelWarn  = rag.LogLevelWarn
	LogLevelInfo  = rag.LogLevelInfo
	LogLevelDebug = rag.LogLevelDebug
)

// Logger interface for logging messages
type Logger = rag.Logger

// SetLogLevel sets the global log level for the docbot package
func SetLogLevel(level LogLevel) {
	rag.SetGlobalLogLevel(level)
}

// SetLogger replaces the global logger.
func SetLogger(logger Logger) {
	rag.SetGlobalLogger(logger)
}

// ParseLogLevel reads a level name such as "debug" or "warn".
func ParseLogLevel(name string) (LogLevel, error) {
	var level LogLevel
	err := level.UnmarshalText([]byte(name))
	return level, err
}

// Debug logs a debug message
func Debug(msg string, keysAndValues ...interface{}) {
	rag.GlobalLogger.Debug(msg, keysAndValues...)
}

// Info logs an info message
func Info(msg string, keysAndValues ...interface{}) {
	rag.GlobalLogger.Info(msg, keysAndValues...)
}

// Warn logs a warning message
func Warn(msg string, keysAndValues ...interface{}) {
	rag.GlobalLogger.Warn(msg, keysAndValues...)
}

// Error logs an error message
func Error(msg string, keysAndValues ...interface{}) {
	rag.GlobalLogger.Error(msg, keysAndValues...)
}
