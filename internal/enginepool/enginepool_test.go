package enginepool

import (
	"testing"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFile_BindsLocationAndTracksAllocations(t *testing.T) {
	l := NewLocalPool(2, nil)
	loc := archtypes.NewLocation("product", "store", "/a")

	f := l.GetFile(loc)
	require.NotNil(t, f)
	assert.Same(t, loc, f.Loc)

	files, _ := l.Stats()
	assert.Equal(t, uint64(1), files.Alloced)
}

func TestPutFile_ResetsBeforeReuse(t *testing.T) {
	l := NewLocalPool(1, nil)
	loc := archtypes.NewLocation("product", "store", "/a")
	f := l.GetFile(loc)
	f.SetInfo("k", "v")

	l.PutFile(f)
	reused := l.GetFile(archtypes.NewLocation("product", "store", "/b"))

	assert.Same(t, f, reused, "single-capacity pool should hand back the same object")
	_, ok := reused.Info("k")
	assert.False(t, ok, "Reset should have cleared prior info before reuse")
}

func TestFileClose_ReturnsItselfToOwningPool(t *testing.T) {
	l := NewLocalPool(1, nil)
	loc := archtypes.NewLocation("product", "store", "/a")
	f := l.GetFile(loc)

	require.NoError(t, f.Close())

	reused := l.GetFile(archtypes.NewLocation("product", "store", "/b"))
	assert.Same(t, f, reused, "Close should have returned f to the single-capacity pool")
}

func TestPoolGrowsGeometrically(t *testing.T) {
	l := NewLocalPool(2, nil)
	var got []*archtypes.File
	for i := 0; i < 3; i++ {
		got = append(got, l.GetFile(archtypes.NewLocation("p", "s", "/x")))
	}
	files, _ := l.Stats()
	assert.Equal(t, uint64(3), files.Alloced)
	assert.Equal(t, 8, files.NextReqSize, "block size should have doubled from 2 to 4 to 8 after two refills")
}

func TestGetRequest_TagsKind(t *testing.T) {
	l := NewLocalPool(4, nil)
	r := l.GetRequest(archtypes.OpPread)
	assert.Equal(t, archtypes.OpPread, r.Kind)
	l.PutRequest(r)
}

func TestAttr_IsClearedOnEachCall(t *testing.T) {
	l := NewLocalPool(1, nil)
	a := l.FileAttr()
	a.FileSize = 42
	a2 := l.FileAttr()
	assert.Same(t, a, a2)
	assert.Equal(t, int64(0), a2.FileSize)
}

func TestReserveStream_RoundTrips(t *testing.T) {
	l := NewLocalPool(1, nil)
	assert.Nil(t, l.ReservedStream())
	l.ReserveStream(nil)
	l.ClearReservation()
	assert.Nil(t, l.ReservedStream())
}

func TestRegistry_ReturnsSameLocalForSameWorker(t *testing.T) {
	reg := NewRegistry(4, func() memcache.Client { return memcache.NewMemoryClient() })
	a := reg.Get(1)
	b := reg.Get(1)
	c := reg.Get(2)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.NotNil(t, a.MemcacheClient)
}
