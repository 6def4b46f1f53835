package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, int64(defaultRotationSize), cfg.RotationSize)
	assert.Equal(t, int64(defaultFreeSpace), cfg.FreeSpace)
	assert.Equal(t, 0, cfg.LogLevel)
	assert.Equal(t, 0, cfg.ExpandVal)
	assert.Equal(t, 0, cfg.FlushInterval)
	assert.Equal(t, "", cfg.LogDir)
}

func TestLoadPrimary_MissingFileIsNotAnError(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadPrimary(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	require.NoError(t, err)
	assert.Equal(t, int64(defaultRotationSize), cfg.RotationSize)
}

func TestLoadPrimary_ParsesRecognisedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivestore.conf")
	content := "# comment\n" +
		"log_dir=/var/log/openarchive\n" +
		"\n" +
		"rotation_size=1048576\n" +
		"free_space=2097152\n" +
		"log_level=3\n" +
		"expand_val=16\n" +
		"flush_interval=60\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadPrimary(path))

	assert.Equal(t, "/var/log/openarchive", cfg.LogDir)
	assert.Equal(t, int64(1048576), cfg.RotationSize)
	assert.Equal(t, int64(2097152), cfg.FreeSpace)
	assert.Equal(t, 3, cfg.LogLevel)
	assert.Equal(t, 16, cfg.ExpandVal)
	assert.Equal(t, 60, cfg.FlushInterval)
}

func TestLoadPrimary_ZeroNumericValueKeepsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivestore.conf")
	require.NoError(t, os.WriteFile(path, []byte("rotation_size=0\n"), 0644))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadPrimary(path))
	assert.Equal(t, int64(defaultRotationSize), cfg.RotationSize)
}

func TestLoadPrimary_UnrecognisedKeyIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivestore.conf")
	require.NoError(t, os.WriteFile(path, []byte("some_unknown_key=value\n"), 0644))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadPrimary(path))
	assert.Equal(t, NewDefault().LogLevel, cfg.LogLevel)
}

func TestLoadSecondaryYAML_MissingFileIsNotAnError(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadSecondaryYAML(filepath.Join(t.TempDir(), "overrides.yaml"))
	require.NoError(t, err)
}

func TestLoadSecondaryYAML_OverlaysCacheAndWriteBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	content := "cache:\n  ttl: 10m\n  max_entries: 5000\n  eviction_policy: weighted_lru\n" +
		"write_buffer:\n  flush_interval: 15s\n  max_buffers: 500\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadSecondaryYAML(path))

	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 5000, cfg.Cache.MaxEntries)
	assert.Equal(t, 15*time.Second, cfg.WriteBuffer.FlushInterval)
	assert.Equal(t, 500, cfg.WriteBuffer.MaxBuffers)
}

func TestValidate(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = 6
	assert.Error(t, cfg.Validate())

	cfg = NewDefault()
	cfg.RotationSize = 0
	assert.Error(t, cfg.Validate())
}
