package logging

import (
	"log/slog"
	"testing"

	"github.com/openarchive/openarchive/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSlogLevel_MapsFullRange(t *testing.T) {
	assert.Equal(t, slog.LevelError, ToSlogLevel(0))
	assert.Equal(t, slog.LevelWarn, ToSlogLevel(1))
	assert.Equal(t, slog.LevelInfo, ToSlogLevel(2))
	assert.Equal(t, slog.LevelDebug, ToSlogLevel(3))
	assert.Equal(t, slog.LevelDebug, ToSlogLevel(5))
}

func TestToSlogLevel_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, slog.LevelError, ToSlogLevel(-1))
	assert.Equal(t, slog.LevelDebug, ToSlogLevel(99))
}

func TestNew_WithoutLogDirWritesToStderr(t *testing.T) {
	cfg := config.NewDefault()
	l := New(cfg)
	require.NotNil(t, l.Logger)
	assert.Nil(t, l.rotator)
	require.NoError(t, l.Close())
}

func TestNew_WithLogDirConfiguresRotator(t *testing.T) {
	cfg := config.NewDefault()
	cfg.LogDir = t.TempDir()
	cfg.FlushInterval = 1

	l := New(cfg)
	require.NotNil(t, l.rotator)
	require.NoError(t, l.Close())
}

func TestClose_IsSafeWithoutFlushLoop(t *testing.T) {
	cfg := config.NewDefault()
	l := New(cfg)
	assert.NotPanics(t, func() { _ = l.Close() })
}
