package rag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelUnmarshalText(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"off", LogLevelOff},
		{"ERROR", LogLevelError},
		{"warning", LogLevelWarn},
		{" info ", LogLevelInfo},
		{"Debug", LogLevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var l LogLevel
			require.NoError(t, l.UnmarshalText([]byte(tt.in)))
			assert.Equal(t, tt.want, l)
		})
	}

	var l LogLevel
	assert.Error(t, l.UnmarshalText([]byte("loud")))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "LogLevel(9)", LogLevel(9).String())
}

func TestDefaultLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, LogLevelWarn)

	logger.Info("quiet message", "file", "a.pdf")
	assert.Empty(t, buf.String())

	logger.Warn("loud message", "file", "a.pdf")
	assert.Contains(t, buf.String(), "loud message")
	assert.Contains(t, buf.String(), "a.pdf")

	buf.Reset()
	logger.SetLevel(LogLevelDebug)
	logger.Debug("debug message")
	assert.Contains(t, buf.String(), "debug message")

	buf.Reset()
	logger.SetLevel(LogLevelOff)
	logger.Error("never shown")
	assert.Empty(t, buf.String())
}
