// Package stream implements the bounded pool of archive-store streams
// described in spec.md §4.5: a counting semaphore gates concurrent streams,
// and a thread-safe FIFO holds the ones not currently checked out. There is
// no per-thread stream reservation: every AllocStream acquires a semaphore
// permit, and a Stream's busy bit is never set.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotActive is returned by ReleaseStream when the stream passed in was
// not currently checked out.
var ErrNotActive = errors.New("stream: release of a stream that is not active")

// Item is the per-object context a Stream holds between AllocItem and
// ReleaseItem, mirroring the vendor API's alloc_item/release_item pair.
type Item struct {
	GUID string
	Path string
	Size int64
}

// Backend is the vendor archive-store stream surface each pooled Stream
// drives. The only implementation in the module is the fake in the tests;
// internal/driver/archivestore does not implement it.
type Backend interface {
	SendMetadata(ctx context.Context, flags int, data []byte) error
	SendData(ctx context.Context, data []byte) (int, error)
	ReceiveData(ctx context.Context, offset int64, guid string, buf []byte) (int, error)
}

// Stream is one checked-out connection to the archive store.
type Stream struct {
	id      int
	backend Backend

	mu     sync.Mutex
	active bool
	busy   bool
	item   *Item
}

// ID identifies the stream for logging/diagnostics.
func (s *Stream) ID() int { return s.id }

// AllocItem binds the stream to a single object transfer.
func (s *Stream) AllocItem(guid, path string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.item = &Item{GUID: guid, Path: path, Size: size}
}

// ReleaseItem detaches the stream from its current object, if any.
func (s *Stream) ReleaseItem() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.item = nil
}

func (s *Stream) SendMetadata(ctx context.Context, flags int, data []byte) error {
	return s.backend.SendMetadata(ctx, flags, data)
}

func (s *Stream) SendData(ctx context.Context, data []byte) (int, error) {
	return s.backend.SendData(ctx, data)
}

func (s *Stream) ReceiveData(ctx context.Context, offset int64, guid string, buf []byte) (int, error) {
	return s.backend.ReceiveData(ctx, offset, guid, buf)
}

// GetCtx produces the opaque per-request callback context passed to the
// vendor async API; request completion threads it back unchanged.
type Ctx struct {
	ReqID  uint64
	Buf    []byte
	Len    int
	Offset int64
}

func (s *Stream) GetCtx(reqID uint64, buf []byte, length int, offset int64) *Ctx {
	return &Ctx{ReqID: reqID, Buf: buf, Len: length, Offset: offset}
}

// Config controls pool sizing. EnableStreamReservation is accepted, and no
// code reads it.
type Config struct {
	NumStreams              int
	EnableStreamReservation bool
}

// Pool is the bounded, semaphore-gated collection of Streams.
type Pool struct {
	sem  chan struct{}
	free chan *Stream
	mu   sync.Mutex
	all  []*Stream
	cfg  Config
}

// New builds a Pool of cfg.NumStreams streams, each driving its own
// Backend instance produced by factory.
func New(cfg Config, factory func(id int) Backend) *Pool {
	if cfg.NumStreams <= 0 {
		cfg.NumStreams = 1
	}
	p := &Pool{
		sem:  make(chan struct{}, cfg.NumStreams),
		free: make(chan *Stream, cfg.NumStreams),
		cfg:  cfg,
	}
	for i := 0; i < cfg.NumStreams; i++ {
		s := &Stream{id: i, backend: factory(i)}
		p.all = append(p.all, s)
		p.free <- s
	}
	return p
}

// AllocStream acquires a semaphore permit (blocking until one is free or
// ctx is cancelled) and pops a stream off the free list.
func (p *Pool) AllocStream(ctx context.Context) (*Stream, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s := <-p.free
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
	return s, nil
}

// ReleaseStream validates the stream is active, releases any item it still
// holds, clears its flags, pushes it back onto the free list and releases
// the semaphore permit.
func (p *Pool) ReleaseStream(s *Stream) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return fmt.Errorf("stream %d: %w", s.id, ErrNotActive)
	}
	s.item = nil
	s.active = false
	s.busy = false
	s.mu.Unlock()

	p.free <- s
	<-p.sem
	return nil
}

// Len reports how many streams are currently free.
func (p *Pool) Len() int {
	return len(p.free)
}

// Capacity reports the pool's total stream count.
func (p *Pool) Capacity() int {
	return p.cfg.NumStreams
}
