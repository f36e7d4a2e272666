package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/penguinmails/tenantcore/internal/common/config"
)

func TestNewLoggerStdout(t *testing.T) {
	l, err := NewLogger(&config.LoggerConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
	l.Info("hello")
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "core.log")
	l, err := NewLogger(&config.LoggerConfig{Output: "file", FilePath: path, Format: "console"})
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Sync())
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, getLogLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, getLogLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, getLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, getLogLevel("bogus"))
}
