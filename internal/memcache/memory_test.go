package memcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGet(t *testing.T) {
	c := NewMemoryClient()
	require.NoError(t, c.Set("k", []byte("v1"), 0))

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestMemoryClient_MissReturnsErrCacheMiss(t *testing.T) {
	c := NewMemoryClient()
	_, err := c.Get("absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_TTLExpiry(t *testing.T) {
	c := NewMemoryClient()
	require.NoError(t, c.Set("k", []byte("v1"), 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)
	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Delete(t *testing.T) {
	c := NewMemoryClient()
	require.NoError(t, c.Set("k", []byte("v1"), 0))
	require.NoError(t, c.Delete("k"))

	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, c.Delete("nonexistent"))
}

func TestMemoryClient_SetOverwritesValue(t *testing.T) {
	c := NewMemoryClient()
	require.NoError(t, c.Set("k", []byte("v1"), 0))
	require.NoError(t, c.Set("k", []byte("v2"), 0))

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}
