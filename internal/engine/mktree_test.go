package engine

import (
	"testing"

	"github.com/openarchive/openarchive/internal/driver/volumefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkTree_VolumeFSProductBuildsBareDriverWhenDecoratorsDisabled(t *testing.T) {
	e := New(Config{})
	defer e.Stop()

	root, err := e.MkTree(TreeConfig{
		Product:  "glusterfs",
		VolumeFS: volumefs.Config{MountRoot: t.TempDir(), Volume: "backupvol"},
	})
	require.NoError(t, err)
	assert.NotNil(t, root)
}

func TestMkTree_UnknownProductReturnsError(t *testing.T) {
	e := New(Config{})
	defer e.Stop()

	_, err := e.MkTree(TreeConfig{Product: "nonsense"})
	assert.ErrorIs(t, err, errUnknownProduct)
}

func TestMkTree_PerfDecoratorWrapsDriverWhenEnabled(t *testing.T) {
	e := New(Config{})
	defer e.Stop()

	root, err := e.MkTree(TreeConfig{
		Product:    "glusterfs",
		VolumeFS:   volumefs.Config{MountRoot: t.TempDir(), Volume: "backupvol"},
		EnablePerf: true,
	})
	require.NoError(t, err)
	// Profile() should not panic even with no operations recorded yet;
	// this exercises the perf decorator actually being in the chain.
	assert.NotPanics(t, root.Profile)
}
