package archtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocationNilUUIDString(t *testing.T) {
	loc := NewLocation("glusterfs", "store1", "/a/b")
	assert.Equal(t, uuid.Nil.String(), loc.UUIDStr())
	assert.Equal(t, uuid.Nil, loc.UUID())
	assert.Equal(t, "glusterfs", loc.Product())
}

func TestLocationSetUUIDRefreshesString(t *testing.T) {
	loc := NewLocation("p", "s", "/x")
	id := uuid.New()
	loc.SetUUID(id)
	assert.Equal(t, id.String(), loc.UUIDStr())
}

func TestLocationClone(t *testing.T) {
	loc := NewLocation("p", "s", "/x")
	loc.NewUUID()
	clone := loc.Clone()
	clone.SetPath("/y")
	assert.Equal(t, "/x", loc.Path())
	assert.Equal(t, "/y", clone.Path())
	assert.Equal(t, loc.UUIDStr(), clone.UUIDStr())
}

func TestFileResetClearsInfo(t *testing.T) {
	loc := NewLocation("p", "s", "/x")
	f := NewFile(loc)
	f.SetInfo("slot", 3)
	f.MarkFailed()
	require.True(t, f.Failed())

	f.Reset()
	_, ok := f.Info("slot")
	assert.False(t, ok)
	assert.False(t, f.Failed())
	assert.Nil(t, f.Loc)
}

func TestFileCallbackInvokedOnce(t *testing.T) {
	f := NewFile(NewLocation("p", "s", "/x"))
	assert.True(t, f.MarkCallbackInvoked())
	assert.False(t, f.MarkCallbackInvoked())
	f.ResetCallbackState()
	assert.True(t, f.MarkCallbackInvoked())
}

func TestRequestCompleteInvokesCallback(t *testing.T) {
	var gotErr error
	var gotCookie any
	req := NewRequest(OpPread)
	req.Cookie = "cookie"
	req.Cbk = func(r *Request, cookie any, err error) {
		gotErr = err
		gotCookie = cookie
	}
	req.Complete(nil)
	assert.NoError(t, gotErr)
	assert.Equal(t, "cookie", gotCookie)
}

func TestRequestResetKeepsBufferCapacity(t *testing.T) {
	req := NewRequest(OpPwrite)
	req.Buffer = make([]byte, 0, 128)
	req.Buffer = append(req.Buffer, []byte("hello")...)
	oldSeq := req.Seq
	req.Reset()
	assert.Equal(t, 0, len(req.Buffer))
	assert.Equal(t, 128, cap(req.Buffer))
	assert.NotEqual(t, oldSeq, req.Seq)
}

func TestFileAttrReset(t *testing.T) {
	fa := NewFileAttr()
	fa.FileSize = 42
	fa.Reset()
	assert.Equal(t, int64(0), fa.FileSize)
}
