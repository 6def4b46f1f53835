package metaiopx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/cache"
	"github.com/openarchive/openarchive/internal/iopx"
	"github.com/openarchive/openarchive/internal/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChild records xattr calls made past the meta cache decorator.
type fakeChild struct {
	iopx.Base

	getCalls    int
	setCalls    int
	removeCalls int

	value []byte
	err   error
}

func (f *fakeChild) FGetXattr(ctx context.Context, file *archtypes.File, name string) ([]byte, error) {
	f.getCalls++
	return f.value, f.err
}

func (f *fakeChild) GetXattr(ctx context.Context, loc *archtypes.Location, name string) ([]byte, error) {
	f.getCalls++
	return f.value, f.err
}

func (f *fakeChild) FSetXattr(ctx context.Context, file *archtypes.File, name string, value []byte) error {
	f.setCalls++
	return f.err
}

func (f *fakeChild) SetXattr(ctx context.Context, loc *archtypes.Location, name string, value []byte) error {
	f.setCalls++
	return f.err
}

func (f *fakeChild) FRemoveXattr(ctx context.Context, file *archtypes.File, name string) error {
	f.removeCalls++
	return f.err
}

func (f *fakeChild) RemoveXattr(ctx context.Context, loc *archtypes.Location, name string) error {
	f.removeCalls++
	return f.err
}

func testLocation() *archtypes.Location {
	loc := archtypes.NewLocation("product", "store", "/a/b")
	loc.NewUUID()
	return loc
}

func TestGetXattr_MissForwardsAndPopulatesCache(t *testing.T) {
	child := &fakeChild{value: []byte("v1")}
	client := memcache.NewMemoryClient()
	m := New(child, client, Config{TTL: time.Minute}, nil)

	loc := testLocation()
	v, err := m.GetXattr(context.Background(), loc, "attr")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
	assert.Equal(t, 1, child.getCalls)

	// Second read should hit the remote client, not the child.
	v2, err := m.GetXattr(context.Background(), loc, "attr")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v2)
	assert.Equal(t, 1, child.getCalls)
}

func TestGetXattr_FrontCacheShortCircuitsRemote(t *testing.T) {
	child := &fakeChild{value: []byte("v1")}
	client := memcache.NewMemoryClient()
	front := cache.NewLRUCache(nil)
	m := New(child, client, Config{TTL: time.Minute, FrontCache: front}, nil)

	loc := testLocation()
	_, err := m.GetXattr(context.Background(), loc, "attr")
	require.NoError(t, err)
	assert.Equal(t, 1, child.getCalls)

	_, err = m.GetXattr(context.Background(), loc, "attr")
	require.NoError(t, err)
	assert.Equal(t, 1, child.getCalls, "second read should be served from the front cache")
}

func TestSetXattr_OnlyCachesAfterChildSucceeds(t *testing.T) {
	child := &fakeChild{err: errors.New("backend rejected write")}
	client := memcache.NewMemoryClient()
	m := New(child, client, Config{TTL: time.Minute}, nil)

	loc := testLocation()
	err := m.SetXattr(context.Background(), loc, "attr", []byte("v1"))
	assert.Error(t, err)

	_, getErr := client.Get(cacheKey(loc.UUIDStr(), "attr"))
	assert.ErrorIs(t, getErr, memcache.ErrCacheMiss)
}

func TestSetXattr_CachesOnSuccess(t *testing.T) {
	child := &fakeChild{}
	client := memcache.NewMemoryClient()
	m := New(child, client, Config{TTL: time.Minute}, nil)

	loc := testLocation()
	require.NoError(t, m.SetXattr(context.Background(), loc, "attr", []byte("v1")))

	v, err := client.Get(cacheKey(loc.UUIDStr(), "attr"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestRemoveXattr_DropsCacheOnlyOnSuccess(t *testing.T) {
	child := &fakeChild{}
	client := memcache.NewMemoryClient()
	m := New(child, client, Config{TTL: time.Minute}, nil)

	loc := testLocation()
	require.NoError(t, m.SetXattr(context.Background(), loc, "attr", []byte("v1")))

	child.err = errors.New("backend rejected remove")
	err := m.RemoveXattr(context.Background(), loc, "attr")
	assert.Error(t, err)

	_, getErr := client.Get(cacheKey(loc.UUIDStr(), "attr"))
	assert.NoError(t, getErr, "entry must survive a failed child remove")

	child.err = nil
	require.NoError(t, m.RemoveXattr(context.Background(), loc, "attr"))
	_, getErr = client.Get(cacheKey(loc.UUIDStr(), "attr"))
	assert.ErrorIs(t, getErr, memcache.ErrCacheMiss)
}

func TestNotReady_PassesThroughWithoutTouchingClient(t *testing.T) {
	child := &fakeChild{value: []byte("v1")}
	m := New(child, nil, Config{}, nil)

	assert.False(t, m.Ready())

	loc := testLocation()
	v, err := m.GetXattr(context.Background(), loc, "attr")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
	assert.Equal(t, 1, child.getCalls)

	// Still forwards on every subsequent call since nothing is cached.
	_, err = m.GetXattr(context.Background(), loc, "attr")
	require.NoError(t, err)
	assert.Equal(t, 2, child.getCalls)
}

func TestFGetXattr_UsesFileLocation(t *testing.T) {
	child := &fakeChild{value: []byte("v1")}
	client := memcache.NewMemoryClient()
	m := New(child, client, Config{TTL: time.Minute}, nil)

	f := archtypes.NewFile(testLocation())
	v, err := m.FGetXattr(context.Background(), f, "attr")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
	assert.Equal(t, 1, child.getCalls)

	_, err = m.FGetXattr(context.Background(), f, "attr")
	require.NoError(t, err)
	assert.Equal(t, 1, child.getCalls)
}
