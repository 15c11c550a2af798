package logger

import (
	"testing"

	"github.com/sifan077/LinkPulse/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFromApp(t *testing.T) {
	dev := FromApp(config.AppConfig{Env: "development"}, config.LogConfig{Level: "debug"})
	assert.True(t, dev.Development)
	assert.Equal(t, "console", dev.Encoding)
	assert.Equal(t, "debug", dev.Level)

	prod := FromApp(config.AppConfig{Env: "production"}, config.LogConfig{})
	assert.False(t, prod.Development)
	assert.Empty(t, prod.Encoding)
}

func TestNew_Level(t *testing.T) {
	l, err := New(Config{Level: "WARN", Encoding: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestL_BeforeInitIsUsable(t *testing.T) {
	assert.NotNil(t, L())
}
