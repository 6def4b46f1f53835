// Package enginepool implements the per-thread local pools described in
// spec.md §4.6 (arch_tls): each worker goroutine gets its own file-object
// pool, request-object pool, memcache client handle and file-attribute
// scratch object, removing lock contention from the allocator hot path.
package enginepool

import (
	"sync"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/memcache"
	"github.com/openarchive/openarchive/internal/stream"
)

// Stats exposes the diagnostics spec.md §4.6 calls out: alloced/freed
// counts and the current geometric growth step size.
type Stats struct {
	Alloced     uint64
	Freed       uint64
	NextReqSize int
}

// expandStep is the geometric growth factor applied to every pool's block
// size each time it runs dry.
const expandStep = 2

// objPool is a minimal geometrically-growing free list. It is not safe for
// concurrent use by design: one objPool lives inside exactly one LocalPool,
// itself owned by exactly one worker goroutine.
type objPool[T any] struct {
	free      []*T
	blockSize int
	new       func() *T
	reset     func(*T)
	alloced   uint64
	freed     uint64
}

func newObjPool[T any](initialBlock int, newFn func() *T, resetFn func(*T)) *objPool[T] {
	return &objPool[T]{blockSize: initialBlock, new: newFn, reset: resetFn}
}

func (p *objPool[T]) get() *T {
	if len(p.free) == 0 {
		for i := 0; i < p.blockSize; i++ {
			p.free = append(p.free, p.new())
		}
		p.blockSize *= expandStep
	}
	n := len(p.free) - 1
	obj := p.free[n]
	p.free = p.free[:n]
	p.alloced++
	return obj
}

func (p *objPool[T]) put(obj *T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.free = append(p.free, obj)
	p.freed++
}

// LocalPool is one worker thread's private allocator state.
type LocalPool struct {
	files    *objPool[archtypes.File]
	requests *objPool[archtypes.Request]
	attr     *archtypes.FileAttr

	MemcacheClient memcache.Client

	reservedStream *stream.Stream
}

// NewLocalPool allocates a LocalPool with the given initial block size (geometric
// growth doubles it every time a pool runs dry) and, optionally, a
// memcache client handle shared across every operation this thread runs.
func NewLocalPool(initialBlock int, client memcache.Client) *LocalPool {
	if initialBlock <= 0 {
		initialBlock = 16
	}
	return &LocalPool{
		files: newObjPool(initialBlock, func() *archtypes.File {
			return archtypes.NewFile(nil)
		}, func(f *archtypes.File) { f.Reset() }),
		requests: newObjPool(initialBlock, func() *archtypes.Request {
			return archtypes.NewRequest(0)
		}, func(r *archtypes.Request) { r.Reset() }),
		attr:           archtypes.NewFileAttr(),
		MemcacheClient: client,
	}
}

// GetFile returns a File bound to loc from the local pool. The File
// remembers l as its owner, so calling f.Close() returns it here directly
// instead of requiring the caller to call PutFile explicitly.
func (l *LocalPool) GetFile(loc *archtypes.Location) *archtypes.File {
	f := l.files.get()
	f.Loc = loc
	f.SetOwner(l)
	return f
}

// PutFile returns f to the local pool.
func (l *LocalPool) PutFile(f *archtypes.File) {
	l.files.put(f)
}

// Close implements archtypes.Owner: it is invoked by f.Close() and returns
// f to this pool for reuse.
func (l *LocalPool) Close(f *archtypes.File) error {
	l.PutFile(f)
	return nil
}

// GetRequest returns a Request of the given kind from the local pool.
func (l *LocalPool) GetRequest(kind archtypes.OpKind) *archtypes.Request {
	r := l.requests.get()
	r.Kind = kind
	return r
}

// PutRequest returns r to the local pool.
func (l *LocalPool) PutRequest(r *archtypes.Request) {
	l.requests.put(r)
}

// FileAttr returns this thread's reusable file-attribute scratch object,
// cleared before being handed out.
func (l *LocalPool) FileAttr() *archtypes.FileAttr {
	l.attr.Reset()
	return l.attr
}

// ReserveStream stashes s for reuse across subsequent operations on the
// same file, per spec.md §4.5's enable_stream_reservation design.
func (l *LocalPool) ReserveStream(s *stream.Stream) {
	l.reservedStream = s
}

// ReservedStream returns the currently stashed stream, if any.
func (l *LocalPool) ReservedStream() *stream.Stream {
	return l.reservedStream
}

// ClearReservation drops the stashed stream reference. Callers MUST call
// this before the goroutine returns to its scheduler idle state, or the
// stream in question can never be released back to its pool.
func (l *LocalPool) ClearReservation() {
	l.reservedStream = nil
}

// Stats reports this thread's allocator diagnostics.
func (l *LocalPool) Stats() (files, requests Stats) {
	files = Stats{Alloced: l.files.alloced, Freed: l.files.freed, NextReqSize: l.files.blockSize}
	requests = Stats{Alloced: l.requests.alloced, Freed: l.requests.freed, NextReqSize: l.requests.blockSize}
	return
}

// Registry hands out one LocalPool per goroutine, keyed by an opaque caller-
// supplied worker id (the engine assigns these; spec.md models true
// thread-local storage, which Go's goroutine scheduler does not expose).
type Registry struct {
	mu      sync.Mutex
	locals  map[int]*LocalPool
	block   int
	clients func() memcache.Client
}

// NewRegistry builds a Registry that lazily creates a LocalPool for each
// distinct worker id on first use.
func NewRegistry(initialBlock int, clientFactory func() memcache.Client) *Registry {
	return &Registry{
		locals:  make(map[int]*LocalPool),
		block:   initialBlock,
		clients: clientFactory,
	}
}

// Get returns (creating if necessary) the LocalPool for workerID.
func (r *Registry) Get(workerID int) *LocalPool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locals[workerID]; ok {
		return l
	}
	var client memcache.Client
	if r.clients != nil {
		client = r.clients()
	}
	l := NewLocalPool(r.block, client)
	r.locals[workerID] = l
	return l
}
