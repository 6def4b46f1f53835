// Package perfiopx implements the passthrough latency/throughput decorator
// described in spec.md §4.7: open, close, pread (sync and async), pwrite,
// fstat, stat, ftruncate, truncate, mkdir, resolve and scan are timed from
// entry to completion, accumulating per-operation count/time/byte counters
// that Profile() logs as averages and throughputs. The xattr operations,
// lseek, getuuid, gethosts and dup pass through to the child untimed.
package perfiopx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/iopx"
	"github.com/openarchive/openarchive/internal/metrics"
)

// opStats accumulates relaxed-ordered counters for one operation kind.
type opStats struct {
	count atomic.Int64
	nanos atomic.Int64
	bytes atomic.Int64
}

func (s *opStats) record(d time.Duration, n int64) {
	s.count.Add(1)
	s.nanos.Add(int64(d))
	if n > 0 {
		s.bytes.Add(n)
	}
}

func (s *opStats) snapshot() (count, nanos, bytes int64) {
	return s.count.Load(), s.nanos.Load(), s.bytes.Load()
}

// Iopx is a passthrough decorator; it never changes a request's outcome,
// only observes its timing.
type Iopx struct {
	iopx.Base

	stats [archtypes.OpScan + 1]opStats

	mu      sync.Mutex
	pending map[uint64]time.Time

	collector *metrics.Collector
	logger    *slog.Logger
}

// New wraps child with a perf-tracking decorator. When collector is non-nil,
// each timed operation is also recorded there as it completes; collector
// may be nil, in which case only the local counters are kept.
func New(child iopx.Operations, collector *metrics.Collector, logger *slog.Logger) *Iopx {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Iopx{
		pending:   make(map[uint64]time.Time),
		collector: collector,
		logger:    logger.With("component", "perfiopx"),
	}
	p.Base.Child = child
	return p
}

func (p *Iopx) start(seq uint64) {
	p.mu.Lock()
	p.pending[seq] = time.Now()
	p.mu.Unlock()
}

// finish removes the bookkeeping entry and returns elapsed time since start.
func (p *Iopx) finish(seq uint64) time.Duration {
	p.mu.Lock()
	started, ok := p.pending[seq]
	delete(p.pending, seq)
	p.mu.Unlock()
	if !ok {
		return 0
	}
	return time.Since(started)
}

func (p *Iopx) record(kind archtypes.OpKind, d time.Duration, bytes int64, err error) {
	p.stats[kind].record(d, bytes)
	if p.collector != nil {
		p.collector.RecordOperation(kind.String(), d, bytes, err == nil)
	}
}

func (p *Iopx) Open(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	p.start(req.Seq)
	err := p.Base.Child.Open(ctx, f, req)
	p.record(archtypes.OpOpen, p.finish(req.Seq), 0, err)
	return err
}

func (p *Iopx) Pread(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	p.start(req.Seq)
	err := p.Base.Child.Pread(ctx, f, req)
	p.record(archtypes.OpPread, p.finish(req.Seq), int64(req.ResultN), err)
	return err
}

// PreadAsync starts the timer but does not finish it: completion arrives
// later via PreadCbk, possibly on a different goroutine.
func (p *Iopx) PreadAsync(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	p.start(req.Seq)
	err := p.Base.Child.PreadAsync(ctx, f, req)
	if err != nil {
		p.record(archtypes.OpPread, p.finish(req.Seq), 0, err)
	}
	return err
}

func (p *Iopx) PreadCbk(f *archtypes.File, req *archtypes.Request, err error) error {
	d := p.finish(req.Seq)
	p.record(archtypes.OpPread, d, int64(req.ResultN), err)
	return p.Base.Child.PreadCbk(f, req, err)
}

func (p *Iopx) Pwrite(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	p.start(req.Seq)
	err := p.Base.Child.Pwrite(ctx, f, req)
	p.record(archtypes.OpPwrite, p.finish(req.Seq), int64(req.ResultN), err)
	return err
}

func (p *Iopx) Close(f *archtypes.File) error {
	start := time.Now()
	err := p.Base.Child.Close(f)
	p.record(archtypes.OpClose, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Fstat(ctx context.Context, f *archtypes.File, attr *archtypes.FileAttr) error {
	start := time.Now()
	err := p.Base.Child.Fstat(ctx, f, attr)
	p.record(archtypes.OpFstat, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Stat(ctx context.Context, loc *archtypes.Location, attr *archtypes.FileAttr) error {
	start := time.Now()
	err := p.Base.Child.Stat(ctx, loc, attr)
	p.record(archtypes.OpStat, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Ftruncate(ctx context.Context, f *archtypes.File, size int64) error {
	start := time.Now()
	err := p.Base.Child.Ftruncate(ctx, f, size)
	p.record(archtypes.OpFtruncate, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Truncate(ctx context.Context, loc *archtypes.Location, size int64) error {
	start := time.Now()
	err := p.Base.Child.Truncate(ctx, loc, size)
	p.record(archtypes.OpTruncate, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Mkdir(ctx context.Context, loc *archtypes.Location) error {
	start := time.Now()
	err := p.Base.Child.Mkdir(ctx, loc)
	p.record(archtypes.OpMkdir, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Resolve(ctx context.Context, loc *archtypes.Location) error {
	start := time.Now()
	err := p.Base.Child.Resolve(ctx, loc)
	p.record(archtypes.OpResolve, time.Since(start), 0, err)
	return err
}

func (p *Iopx) Scan(ctx context.Context, loc *archtypes.Location, full bool) ([]archtypes.Location, error) {
	start := time.Now()
	locs, err := p.Base.Child.Scan(ctx, loc, full)
	p.record(archtypes.OpScan, time.Since(start), 0, err)
	return locs, err
}

// Profile logs per-operation averages and throughputs, then forwards to
// the child so the whole tree's stats surface through one call.
func (p *Iopx) Profile() {
	for kind := archtypes.OpOpen; kind <= archtypes.OpScan; kind++ {
		count, nanos, bytes := p.stats[kind].snapshot()
		if count == 0 {
			continue
		}
		avg := time.Duration(nanos / count)
		fields := []any{
			"op", kind.String(),
			"count", count,
			"avg_latency", avg,
		}
		if bytes > 0 && nanos > 0 {
			throughput := float64(bytes) / (float64(nanos) / float64(time.Second))
			fields = append(fields, "bytes", bytes, "throughput_bytes_per_sec", throughput)
		}
		p.logger.Info("perfiopx profile", fields...)
	}
	p.Base.Child.Profile()
}
