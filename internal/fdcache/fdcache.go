// Package fdcache implements the fd-cache iopx: it amortises open cost
// across repeated access to the same location, coalesces concurrent reads
// that land on the same aligned read-ahead window, and forwards every
// write/invalidating operation straight through (spec.md §4.3).
package fdcache

import (
	"context"
	"time"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/buffer"
	"github.com/openarchive/openarchive/internal/iopx"
)

// Iopx is the fd-cache decorator. Every operation not explicitly
// overridden here inherits Base's forward-to-child behaviour.
type Iopx struct {
	iopx.Base

	cfg    Config
	table  *slotTable
	reqMap *requestMap
	pool   *buffer.BytePool
}

// New wires an fd-cache decorator in front of child.
func New(child iopx.Operations, cfg Config) *Iopx {
	return &Iopx{
		Base:   iopx.Base{Child: child},
		cfg:    cfg,
		table:  newSlotTable(cfg.Capacity),
		reqMap: newRequestMap(),
		pool:   buffer.NewBytePool(),
	}
}

func (c *Iopx) Open(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	if !c.cfg.Enabled || f.Loc == nil {
		return c.Base.Child.Open(ctx, f, req)
	}
	uuidStr := f.Loc.UUIDStr()

	for {
		idx, s, found, acquired := c.table.trySetBusy(uuidStr)
		if found {
			if acquired {
				return c.reuseSlot(ctx, f, idx, s)
			}
			// Slot exists but another caller currently holds it; back off
			// and retry rather than block indefinitely on a condvar.
			time.Sleep(time.Millisecond)
			continue
		}
		break
	}

	return c.openNewSlot(ctx, f, req, uuidStr)
}

// reuseSlot confirms the slot's cached handle is still live (via Dup, then
// immediately closing the duplicate) and hands the caller the slot index.
// The real child fd stays in s.file, untouched by f.Fd, for exactly as long
// as the slot exists.
func (c *Iopx) reuseSlot(ctx context.Context, f *archtypes.File, idx int, s *slot) error {
	s.opMutex.Lock()
	cached := s.file
	s.opMutex.Unlock()

	dup, err := c.Base.Child.Dup(cached)
	if err != nil {
		c.table.mu.Lock()
		s.busy = false
		c.table.mu.Unlock()
		return err
	}
	_ = c.Base.Child.Close(dup)
	f.Fd = idx
	return nil
}

func (c *Iopx) openNewSlot(ctx context.Context, f *archtypes.File, req *archtypes.Request, uuidStr string) error {
	idx, evicted, hadVictim := c.table.reserveVictim()
	s := c.table.slots[idx]

	s.opMutex.Lock()
	if hadVictim && evicted != nil {
		_ = c.Base.Child.Close(evicted)
	}
	s.invalidateBuffer()

	if err := c.Base.Child.Open(ctx, f, req); err != nil {
		s.valid = false
		s.busy = false
		s.opMutex.Unlock()
		return err
	}

	// Cache the child's real handle separately from the caller-facing f:
	// f.Fd is about to become the slot index, so anything forwarded to the
	// child from here on must go through this shadow file instead.
	cached := archtypes.NewFile(f.Loc)
	cached.Fd = f.Fd
	s.file = cached
	s.uuidStr = uuidStr
	s.valid = true
	s.busy = true
	s.opMutex.Unlock()

	c.table.publish(uuidStr, idx)
	f.Fd = idx
	return nil
}

func (c *Iopx) Close(f *archtypes.File) error {
	idx, ok := f.Fd.(int)
	if !c.cfg.Enabled || !ok {
		return c.Base.Child.Close(f)
	}
	s := c.table.slots[idx]
	s.opMutex.Lock()
	s.invalidateBuffer()
	s.opMutex.Unlock()

	c.table.mu.Lock()
	s.busy = false
	c.table.mu.Unlock()
	return nil
}

func (c *Iopx) Pread(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	return c.servePread(ctx, f, req, true)
}

func (c *Iopx) PreadAsync(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	return c.servePread(ctx, f, req, false)
}

// wrapForBlocking chains a completion-signalling channel onto req's Cbk,
// used when Pread (the synchronous entry point) needs to block a caller
// until a coalesced or newly issued generator read actually completes.
func wrapForBlocking(req *archtypes.Request) <-chan struct{} {
	done := make(chan struct{})
	orig := req.Cbk
	req.Cbk = func(r *archtypes.Request, cookie any, err error) {
		if orig != nil {
			orig(r, cookie, err)
		}
		close(done)
	}
	return done
}

func (c *Iopx) servePread(ctx context.Context, f *archtypes.File, req *archtypes.Request, blocking bool) error {
	idx, ok := f.Fd.(int)
	if !c.cfg.Enabled || !ok {
		if blocking {
			return c.Base.Child.Pread(ctx, f, req)
		}
		return c.Base.Child.PreadAsync(ctx, f, req)
	}

	s := c.table.slots[idx]
	aligned := c.cfg.alignedOffset(req.Offset)

	s.opMutex.Lock()
	cached := s.file

	// (a) hit: buffer already covers the requested range.
	if s.buf.covers(aligned, req.Offset, req.Length) {
		rel := req.Offset - s.buf.alignedOff
		n := copy(req.Buffer[:req.Length], s.buf.data[rel:rel+req.Length])
		s.opMutex.Unlock()
		req.ResultN = n
		req.Complete(nil)
		return nil
	}

	// (b) stale buffer for a different window: drop it.
	if s.buf.valid && s.buf.alignedOff != aligned {
		s.invalidateBuffer()
	}

	// (c) a generator for this exact window is already in flight: attach.
	if s.buf.rdInProgress && s.buf.alignedOff == aligned {
		key := genKey(idx, aligned)
		var done <-chan struct{}
		if blocking {
			done = wrapForBlocking(req)
		}
		attached := c.reqMap.attach(key, req)
		s.opMutex.Unlock()
		if attached {
			if blocking {
				<-done
				return req.ResultErr
			}
			return nil
		}
		// generator finished between our check and attach; retry from (a).
		return c.servePread(ctx, f, req, blocking)
	}

	// (d) no usable buffer: issue a fresh aligned generator read.
	buf := c.pool.Get(int(c.cfg.RaBufSize))
	s.buf = raBuffer{rdInProgress: true, alignedOff: aligned, data: buf}

	gen := archtypes.NewRequest(archtypes.OpPreadAsync)
	gen.Offset = aligned
	gen.Length = c.cfg.RaBufSize
	gen.Buffer = buf

	var done <-chan struct{}
	if blocking {
		done = wrapForBlocking(req)
	}

	key := genKey(idx, aligned)
	c.reqMap.register(key, &rqmapEntry{
		slotIndex:  idx,
		alignedOff: aligned,
		generator:  gen,
		parents:    []*archtypes.Request{req},
	})
	gen.Cbk = func(r *archtypes.Request, cookie any, err error) {
		c.completeGenerator(idx, key, r, err)
	}
	s.opMutex.Unlock()

	if err := c.Base.Child.PreadAsync(ctx, cached, gen); err != nil {
		c.PreadCbk(cached, gen, err)
	}

	if blocking {
		<-done
		return req.ResultErr
	}
	return nil
}

// PreadCbk is how the child iopx reports that a generator read finished. It
// is also the completion path wired into every generator's own Cbk, so the
// fan-out to coalesced parents happens exactly once per generator.
func (c *Iopx) PreadCbk(f *archtypes.File, req *archtypes.Request, err error) error {
	req.Complete(err)
	return nil
}

func (c *Iopx) completeGenerator(idx int, key string, gen *archtypes.Request, err error) {
	s := c.table.slots[idx]
	entry, ok := c.reqMap.pop(key)
	if !ok {
		return
	}

	s.opMutex.Lock()
	if err == nil {
		s.buf.valid = true
		s.buf.rdInProgress = false
		filled := gen.ResultN
		if filled == 0 {
			filled = len(gen.Buffer)
		}
		s.buf.filled = int64(filled)
	} else {
		s.invalidateBuffer()
	}
	s.opMutex.Unlock()

	for _, parent := range entry.parents {
		if err != nil {
			parent.Complete(err)
			continue
		}
		rel := parent.Offset - gen.Offset
		n := copy(parent.Buffer[:parent.Length], gen.Buffer[rel:rel+parent.Length])
		parent.ResultN = n
		parent.Complete(nil)
	}
}

func (c *Iopx) Pwrite(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	c.invalidateFile(f)
	return c.Base.Child.Pwrite(ctx, f, req)
}

func (c *Iopx) Ftruncate(ctx context.Context, f *archtypes.File, size int64) error {
	c.invalidateFile(f)
	return c.Base.Child.Ftruncate(ctx, f, size)
}

func (c *Iopx) Truncate(ctx context.Context, loc *archtypes.Location, size int64) error {
	if c.cfg.Enabled && loc != nil {
		if idx, ok := c.table.lookup(loc.UUIDStr()); ok {
			c.invalidateSlot(idx)
		}
	}
	return c.Base.Child.Truncate(ctx, loc, size)
}

func (c *Iopx) FSetXattr(ctx context.Context, f *archtypes.File, name string, value []byte) error {
	c.invalidateFile(f)
	return c.Base.Child.FSetXattr(ctx, f, name, value)
}

func (c *Iopx) SetXattr(ctx context.Context, loc *archtypes.Location, name string, value []byte) error {
	if c.cfg.Enabled && loc != nil {
		if idx, ok := c.table.lookup(loc.UUIDStr()); ok {
			c.invalidateSlot(idx)
		}
	}
	return c.Base.Child.SetXattr(ctx, loc, name, value)
}

func (c *Iopx) invalidateFile(f *archtypes.File) {
	if !c.cfg.Enabled {
		return
	}
	if idx, ok := f.Fd.(int); ok {
		c.invalidateSlot(idx)
	}
}

func (c *Iopx) invalidateSlot(idx int) {
	s := c.table.slots[idx]
	s.opMutex.Lock()
	s.invalidateBuffer()
	s.opMutex.Unlock()
}
