package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tiertrain.log")
	log, err := New(Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.With(String("component", "cache")).Info("stored", Int("tier", 3))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"component":"cache"`), string(data))
	require.True(t, strings.Contains(string(data), `"tier":3`), string(data))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestWrapObserver(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := Wrap(zap.New(core))
	log.Info("dropped")
	log.Warn("kept", String("url", "https://example.com/a.jpg"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "kept", entry.Message)
	require.Equal(t, "https://example.com/a.jpg", entry.ContextMap()["url"])
}
