// Package archivestore binds the iopx operation surface onto the vendor
// archive store (internal/storage/s3), the terminal driver at the bottom
// of the iopx tree for product "archivestore" (spec.md §4.2's mktree
// branch, §6's vendor driver vtable).
package archivestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/circuit"
	"github.com/openarchive/openarchive/internal/iopx"
	"github.com/openarchive/openarchive/internal/storage/s3"
)

// objectBackend is the subset of internal/storage/s3.Backend the driver
// needs, kept as an interface so tests can substitute a fake without
// standing up a real S3 endpoint.
type objectBackend interface {
	GetObject(ctx context.Context, key string, offset, size int64) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*s3.ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]s3.ObjectInfo, error)
	GetMetrics() s3.BackendMetrics
}

// writeHandle accumulates pwrite calls for a file opened for writing until
// Close flushes the assembled object to the backend in one PutObject call
// (archive-store objects are written whole, never appended to in place).
type writeHandle struct {
	mu      sync.Mutex
	buf     []byte
	dirty   bool
	forRead bool
	size    int64
}

// Driver implements iopx.Operations directly against an S3-backed archive
// store. It sits at the bottom of the tree, so unlike every decorator
// above it there is no child to forward to: every operation is either
// implemented here or explicitly unsupported.
type Driver struct {
	backend objectBackend
	breaker *circuit.CircuitBreaker
	logger  *slog.Logger
}

// New wires a Driver around backend, guarding every call through breaker.
func New(backend objectBackend, breaker *circuit.CircuitBreaker, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = circuit.NewCircuitBreaker("archivestore", circuit.Config{})
	}
	return &Driver{backend: backend, breaker: breaker, logger: logger.With("component", "archivestore")}
}

func objectKey(loc *archtypes.Location) string {
	parts := []string{loc.Product(), loc.Store(), strings.TrimPrefix(loc.Path(), "/")}
	return strings.Join(parts, "/")
}

func (d *Driver) Open(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	wh := &writeHandle{}
	err := d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		info, err := d.backend.HeadObject(ctx, objectKey(f.Loc))
		if err == nil {
			wh.forRead = true
			wh.size = info.Size
			return nil
		}
		// Object doesn't exist yet: this open is for a fresh write.
		wh.forRead = false
		return nil
	})
	if err != nil {
		return err
	}
	f.Fd = wh
	return nil
}

func (d *Driver) Close(f *archtypes.File) error {
	wh, ok := f.Fd.(*writeHandle)
	if !ok || !wh.dirty {
		return nil
	}
	wh.mu.Lock()
	data := wh.buf
	wh.mu.Unlock()

	return d.breaker.Execute(func() error {
		return d.backend.PutObject(context.Background(), objectKey(f.Loc), data)
	})
}

func (d *Driver) Pread(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	err := d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		data, err := d.backend.GetObject(ctx, objectKey(f.Loc), req.Offset, req.Length)
		if err != nil {
			return err
		}
		n := copy(req.Buffer[:req.Length], data)
		req.ResultN = n
		return nil
	})
	req.Complete(err)
	return err
}

func (d *Driver) PreadAsync(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	go func() { _ = d.Pread(ctx, f, req) }()
	return nil
}

func (d *Driver) PreadCbk(f *archtypes.File, req *archtypes.Request, err error) error {
	req.Complete(err)
	return nil
}

func (d *Driver) Pwrite(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	wh, ok := f.Fd.(*writeHandle)
	if !ok {
		return fmt.Errorf("archivestore: pwrite on a file not opened through this driver")
	}
	wh.mu.Lock()
	defer wh.mu.Unlock()

	end := req.Offset + req.Length
	if int64(len(wh.buf)) < end {
		grown := make([]byte, end)
		copy(grown, wh.buf)
		wh.buf = grown
	}
	copy(wh.buf[req.Offset:end], req.Buffer[:req.Length])
	wh.dirty = true
	wh.size = int64(len(wh.buf))
	req.ResultN = int(req.Length)
	return nil
}

func (d *Driver) Fstat(ctx context.Context, f *archtypes.File, attr *archtypes.FileAttr) error {
	return d.Stat(ctx, f.Loc, attr)
}

func (d *Driver) Stat(ctx context.Context, loc *archtypes.Location, attr *archtypes.FileAttr) error {
	return d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		info, err := d.backend.HeadObject(ctx, objectKey(loc))
		if err != nil {
			return err
		}
		attr.Product = loc.Product()
		attr.Store = loc.Store()
		attr.UUID = loc.UUIDStr()
		attr.FileSize = info.Size
		return nil
	})
}

func (d *Driver) Ftruncate(ctx context.Context, f *archtypes.File, size int64) error {
	wh, ok := f.Fd.(*writeHandle)
	if !ok {
		return fmt.Errorf("archivestore: ftruncate on a file not opened through this driver")
	}
	wh.mu.Lock()
	defer wh.mu.Unlock()
	if size <= int64(len(wh.buf)) {
		wh.buf = wh.buf[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, wh.buf)
		wh.buf = grown
	}
	wh.dirty = true
	wh.size = size
	return nil
}

func (d *Driver) Truncate(ctx context.Context, loc *archtypes.Location, size int64) error {
	return d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		data, err := d.backend.GetObject(ctx, objectKey(loc), 0, 0)
		if err != nil {
			return err
		}
		if size <= int64(len(data)) {
			data = data[:size]
		} else {
			grown := make([]byte, size)
			copy(grown, data)
			data = grown
		}
		return d.backend.PutObject(ctx, objectKey(loc), data)
	})
}

func xattrKey(loc *archtypes.Location, name string) string {
	return fmt.Sprintf("xattr-%s", name)
}

func (d *Driver) FSetXattr(ctx context.Context, f *archtypes.File, name string, value []byte) error {
	return d.SetXattr(ctx, f.Loc, name, value)
}

func (d *Driver) SetXattr(ctx context.Context, loc *archtypes.Location, name string, value []byte) error {
	return d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return d.backend.PutObject(ctx, objectKey(loc)+"."+xattrKey(loc, name), value)
	})
}

func (d *Driver) FGetXattr(ctx context.Context, f *archtypes.File, name string) ([]byte, error) {
	return d.GetXattr(ctx, f.Loc, name)
}

func (d *Driver) GetXattr(ctx context.Context, loc *archtypes.Location, name string) ([]byte, error) {
	var value []byte
	err := d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		data, err := d.backend.GetObject(ctx, objectKey(loc)+"."+xattrKey(loc, name), 0, 0)
		if err != nil {
			return err
		}
		value = data
		return nil
	})
	return value, err
}

func (d *Driver) FRemoveXattr(ctx context.Context, f *archtypes.File, name string) error {
	return d.RemoveXattr(ctx, f.Loc, name)
}

func (d *Driver) RemoveXattr(ctx context.Context, loc *archtypes.Location, name string) error {
	return d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return d.backend.DeleteObject(ctx, objectKey(loc)+"."+xattrKey(loc, name))
	})
}

func (d *Driver) Lseek(f *archtypes.File, offset int64, whence int) (int64, error) {
	wh, ok := f.Fd.(*writeHandle)
	if !ok {
		return 0, fmt.Errorf("archivestore: lseek on a file not opened through this driver")
	}
	switch whence {
	case 0:
		return offset, nil
	case 1:
		return offset, nil
	case 2:
		wh.mu.Lock()
		defer wh.mu.Unlock()
		return wh.size + offset, nil
	default:
		return 0, fmt.Errorf("archivestore: unsupported whence %d", whence)
	}
}

func (d *Driver) GetUUID(ctx context.Context, loc *archtypes.Location) error {
	loc.NewUUID()
	return nil
}

func (d *Driver) GetHosts(ctx context.Context, loc *archtypes.Location) (iopx.Hosts, error) {
	// Object storage is location-transparent: there is no fixed host to
	// report back for locality-aware scheduling.
	return iopx.Hosts{}, nil
}

func (d *Driver) Mkdir(ctx context.Context, loc *archtypes.Location) error {
	// Object storage has no directories; a zero-byte ".keep" marker object
	// stands in for one. Scan skips these markers.
	return d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return d.backend.PutObject(ctx, strings.TrimSuffix(objectKey(loc), "/")+"/.keep", nil)
	})
}

func (d *Driver) Resolve(ctx context.Context, loc *archtypes.Location) error {
	return d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		_, err := d.backend.HeadObject(ctx, objectKey(loc))
		return err
	})
}

func (d *Driver) Dup(src *archtypes.File) (*archtypes.File, error) {
	dup := archtypes.NewFile(src.Loc)
	dup.Fd = src.Fd
	return dup, nil
}

func (d *Driver) Scan(ctx context.Context, loc *archtypes.Location, full bool) ([]archtypes.Location, error) {
	var out []archtypes.Location
	err := d.breaker.ExecuteWithContext(ctx, func(ctx context.Context) error {
		objs, err := d.backend.ListObjects(ctx, objectKey(loc), 0)
		if err != nil {
			return err
		}
		for _, o := range objs {
			if strings.Contains(o.Key, ".keep") || strings.Contains(o.Key, "xattr-") {
				continue
			}
			l := archtypes.NewLocation(loc.Product(), loc.Store(), o.Key)
			out = append(out, *l)
		}
		return nil
	})
	return out, err
}

func (d *Driver) Profile() {
	metrics := d.backend.GetMetrics()
	d.logger.Info("archivestore profile",
		"requests", metrics.Requests,
		"errors", metrics.Errors,
		"average_latency", metrics.AverageLatency,
		"bytes_uploaded", metrics.BytesUploaded,
		"bytes_downloaded", metrics.BytesDownloaded,
	)
}

var _ iopx.Operations = (*Driver)(nil)

// keepaliveInterval is a 30-second interval constant. No code in the
// repository reads it; nothing re-probes the breaker on a timer.
const keepaliveInterval = 30 * time.Second
