// Package iopx implements the uniform I/O plug-in operation surface and the
// default parent/child forwarding behaviour every decorator in the tree
// builds on.
package iopx

import (
	"context"

	"github.com/openarchive/openarchive/internal/archtypes"
)

// Hosts describes where a location's backing data physically lives,
// returned by GetHosts for locality-aware scheduling.
type Hosts struct {
	Addrs []string
}

// Operations is the uniform surface every layer in an iopx tree exposes.
// A layer that does not care about a particular operation embeds Base and
// inherits its default forward-to-child behaviour.
type Operations interface {
	Open(ctx context.Context, f *archtypes.File, req *archtypes.Request) error
	Close(f *archtypes.File) error
	Pread(ctx context.Context, f *archtypes.File, req *archtypes.Request) error
	PreadAsync(ctx context.Context, f *archtypes.File, req *archtypes.Request) error
	PreadCbk(f *archtypes.File, req *archtypes.Request, err error) error
	Pwrite(ctx context.Context, f *archtypes.File, req *archtypes.Request) error
	Fstat(ctx context.Context, f *archtypes.File, attr *archtypes.FileAttr) error
	Stat(ctx context.Context, loc *archtypes.Location, attr *archtypes.FileAttr) error
	Ftruncate(ctx context.Context, f *archtypes.File, size int64) error
	Truncate(ctx context.Context, loc *archtypes.Location, size int64) error
	FSetXattr(ctx context.Context, f *archtypes.File, name string, value []byte) error
	SetXattr(ctx context.Context, loc *archtypes.Location, name string, value []byte) error
	FGetXattr(ctx context.Context, f *archtypes.File, name string) ([]byte, error)
	GetXattr(ctx context.Context, loc *archtypes.Location, name string) ([]byte, error)
	FRemoveXattr(ctx context.Context, f *archtypes.File, name string) error
	RemoveXattr(ctx context.Context, loc *archtypes.Location, name string) error
	Lseek(f *archtypes.File, offset int64, whence int) (int64, error)
	GetUUID(ctx context.Context, loc *archtypes.Location) error
	GetHosts(ctx context.Context, loc *archtypes.Location) (Hosts, error)
	Mkdir(ctx context.Context, loc *archtypes.Location) error
	Resolve(ctx context.Context, loc *archtypes.Location) error
	Dup(src *archtypes.File) (*archtypes.File, error)
	Scan(ctx context.Context, loc *archtypes.Location, full bool) ([]archtypes.Location, error)
	Profile()
}

// Base implements Operations by forwarding every call to Child. Decorators
// embed Base and override only the operations they intercept, matching the
// original arch_iopx default-forward contract.
type Base struct {
	Child Operations
}

func (b *Base) Open(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	return b.Child.Open(ctx, f, req)
}

func (b *Base) Close(f *archtypes.File) error {
	return b.Child.Close(f)
}

func (b *Base) Pread(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	return b.Child.Pread(ctx, f, req)
}

func (b *Base) PreadAsync(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	return b.Child.PreadAsync(ctx, f, req)
}

func (b *Base) PreadCbk(f *archtypes.File, req *archtypes.Request, err error) error {
	return b.Child.PreadCbk(f, req, err)
}

func (b *Base) Pwrite(ctx context.Context, f *archtypes.File, req *archtypes.Request) error {
	return b.Child.Pwrite(ctx, f, req)
}

func (b *Base) Fstat(ctx context.Context, f *archtypes.File, attr *archtypes.FileAttr) error {
	return b.Child.Fstat(ctx, f, attr)
}

func (b *Base) Stat(ctx context.Context, loc *archtypes.Location, attr *archtypes.FileAttr) error {
	return b.Child.Stat(ctx, loc, attr)
}

func (b *Base) Ftruncate(ctx context.Context, f *archtypes.File, size int64) error {
	return b.Child.Ftruncate(ctx, f, size)
}

func (b *Base) Truncate(ctx context.Context, loc *archtypes.Location, size int64) error {
	return b.Child.Truncate(ctx, loc, size)
}

func (b *Base) FSetXattr(ctx context.Context, f *archtypes.File, name string, value []byte) error {
	return b.Child.FSetXattr(ctx, f, name, value)
}

func (b *Base) SetXattr(ctx context.Context, loc *archtypes.Location, name string, value []byte) error {
	return b.Child.SetXattr(ctx, loc, name, value)
}

func (b *Base) FGetXattr(ctx context.Context, f *archtypes.File, name string) ([]byte, error) {
	return b.Child.FGetXattr(ctx, f, name)
}

func (b *Base) GetXattr(ctx context.Context, loc *archtypes.Location, name string) ([]byte, error) {
	return b.Child.GetXattr(ctx, loc, name)
}

func (b *Base) FRemoveXattr(ctx context.Context, f *archtypes.File, name string) error {
	return b.Child.FRemoveXattr(ctx, f, name)
}

func (b *Base) RemoveXattr(ctx context.Context, loc *archtypes.Location, name string) error {
	return b.Child.RemoveXattr(ctx, loc, name)
}

func (b *Base) Lseek(f *archtypes.File, offset int64, whence int) (int64, error) {
	return b.Child.Lseek(f, offset, whence)
}

func (b *Base) GetUUID(ctx context.Context, loc *archtypes.Location) error {
	return b.Child.GetUUID(ctx, loc)
}

func (b *Base) GetHosts(ctx context.Context, loc *archtypes.Location) (Hosts, error) {
	return b.Child.GetHosts(ctx, loc)
}

func (b *Base) Mkdir(ctx context.Context, loc *archtypes.Location) error {
	return b.Child.Mkdir(ctx, loc)
}

func (b *Base) Resolve(ctx context.Context, loc *archtypes.Location) error {
	return b.Child.Resolve(ctx, loc)
}

func (b *Base) Dup(src *archtypes.File) (*archtypes.File, error) {
	return b.Child.Dup(src)
}

func (b *Base) Scan(ctx context.Context, loc *archtypes.Location, full bool) ([]archtypes.Location, error) {
	return b.Child.Scan(ctx, loc, full)
}

func (b *Base) Profile() {
	if b.Child != nil {
		b.Child.Profile()
	}
}
