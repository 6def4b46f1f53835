package archtypes

import (
	"sync"
	"sync/atomic"
)

// Owner is the minimal surface a File needs from whatever iopx layer
// allocated it, so the file can close itself on finalization without the
// archtypes package importing the iopx tree (which would create a cycle).
type Owner interface {
	Close(*File) error
}

// File is a handle threaded through the iopx tree: a Location, an opaque
// driver-level descriptor, a small bag of string-keyed info set by
// decorators (fd-cache slot index, stream id, ...), and bookkeeping bits
// used for safe reuse from an object pool.
type File struct {
	Loc   *Location
	Fd    any
	owner Owner

	mu   sync.Mutex
	info map[string]any

	failed    atomic.Bool
	cbkCalled atomic.Bool
}

// NewFile allocates a File bound to loc. Fd is nil until a driver opens it.
func NewFile(loc *Location) *File {
	return &File{Loc: loc, info: make(map[string]any)}
}

// Reset clears a File back to its post-allocation state so it can be
// returned to a pool and reused for a different Location.
func (f *File) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loc = nil
	f.Fd = nil
	f.owner = nil
	for k := range f.info {
		delete(f.info, k)
	}
	f.failed.Store(false)
	f.cbkCalled.Store(false)
}

func (f *File) SetOwner(o Owner) { f.owner = o }

func (f *File) Owner() Owner { return f.owner }

func (f *File) Info(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.info[key]
	return v, ok
}

func (f *File) SetInfo(key string, val any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info[key] = val
}

func (f *File) DeleteInfo(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.info, key)
}

// MarkFailed records that an irrecoverable error occurred against this
// file; subsequent operations against it should fail fast.
func (f *File) MarkFailed() { f.failed.Store(true) }

func (f *File) Failed() bool { return f.failed.Load() }

// MarkCallbackInvoked returns true if this is the first call, false if the
// completion callback for this file's in-flight operation already fired.
// Used to guard against double-invocation of async completions.
func (f *File) MarkCallbackInvoked() bool {
	return f.cbkCalled.CompareAndSwap(false, true)
}

func (f *File) ResetCallbackState() { f.cbkCalled.Store(false) }

// Close asks the owning layer to close this file, if one was set.
func (f *File) Close() error {
	if f.owner == nil {
		return nil
	}
	return f.owner.Close(f)
}
