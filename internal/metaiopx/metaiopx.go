// Package metaiopx implements the extended-attribute cache decorator
// (spec.md §4.4): it intercepts the six xattr operations, keys entries by
// the file's uuid-string and the attribute name, and backs them with a
// local weighted-LRU front cache in front of a remote memcache.Client.
package metaiopx

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openarchive/openarchive/internal/archtypes"
	"github.com/openarchive/openarchive/internal/cache"
	"github.com/openarchive/openarchive/internal/iopx"
	"github.com/openarchive/openarchive/internal/memcache"
)

// Config controls the meta cache's behaviour.
type Config struct {
	TTL time.Duration
	// FrontCache, when non-nil, is consulted before the remote client on
	// every get and updated alongside it on every set/remove.
	FrontCache *cache.LRUCache
}

// Iopx intercepts {f,}{set,get,remove}xattr. Every other operation forwards
// to Child via the embedded Base.
type Iopx struct {
	iopx.Base

	client memcache.Client
	ttl    time.Duration
	front  *cache.LRUCache
	logger *slog.Logger

	// ready is false when symbol resolution of the memcache client failed
	// at construction; every operation then passes through untouched
	// (spec.md §4.4 "Library-level symbol binding ... not ready state").
	ready atomic.Bool
}

// New wires a meta cache decorator around child, using client for the
// remote lookups. A nil client puts the decorator into not-ready state
// immediately — every xattr call then forwards to child unmodified.
func New(child iopx.Operations, client memcache.Client, cfg Config, logger *slog.Logger) *Iopx {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Iopx{
		Base:   iopx.Base{Child: child},
		client: client,
		ttl:    cfg.TTL,
		front:  cfg.FrontCache,
		logger: logger.With("component", "metaiopx"),
	}
	m.ready.Store(client != nil)
	if client == nil {
		m.logger.Warn("meta cache memcache client unavailable, operating in passthrough mode")
	}
	return m
}

func cacheKey(uuidStr, name string) string {
	return uuidStr + ":" + name
}

func (m *Iopx) getFromCache(key string) ([]byte, bool) {
	if m.front != nil {
		if v := m.front.Get(key, 0, 0); v != nil {
			return v, true
		}
	}
	if !m.ready.Load() {
		return nil, false
	}
	v, err := m.client.Get(key)
	if err != nil {
		return nil, false
	}
	if m.front != nil {
		m.front.Put(key, 0, v)
	}
	return v, true
}

func (m *Iopx) putInCache(key string, value []byte) {
	if m.front != nil {
		m.front.Put(key, 0, value)
	}
	if m.ready.Load() {
		if err := m.client.Set(key, value, m.ttl); err != nil {
			m.logger.Debug("meta cache set failed, passthrough stands", "key", key, "error", err)
		}
	}
}

func (m *Iopx) dropFromCache(key string) {
	if m.front != nil {
		m.front.Delete(key)
	}
	if m.ready.Load() {
		_ = m.client.Delete(key)
	}
}

func (m *Iopx) FGetXattr(ctx context.Context, f *archtypes.File, name string) ([]byte, error) {
	key := cacheKey(f.Loc.UUIDStr(), name)
	if v, ok := m.getFromCache(key); ok {
		return v, nil
	}
	v, err := m.Base.Child.FGetXattr(ctx, f, name)
	if err != nil {
		return nil, err
	}
	m.putInCache(key, v)
	return v, nil
}

func (m *Iopx) GetXattr(ctx context.Context, loc *archtypes.Location, name string) ([]byte, error) {
	key := cacheKey(loc.UUIDStr(), name)
	if v, ok := m.getFromCache(key); ok {
		return v, nil
	}
	v, err := m.Base.Child.GetXattr(ctx, loc, name)
	if err != nil {
		return nil, err
	}
	m.putInCache(key, v)
	return v, nil
}

func (m *Iopx) FSetXattr(ctx context.Context, f *archtypes.File, name string, value []byte) error {
	if err := m.Base.Child.FSetXattr(ctx, f, name, value); err != nil {
		return err
	}
	m.putInCache(cacheKey(f.Loc.UUIDStr(), name), value)
	return nil
}

func (m *Iopx) SetXattr(ctx context.Context, loc *archtypes.Location, name string, value []byte) error {
	if err := m.Base.Child.SetXattr(ctx, loc, name, value); err != nil {
		return err
	}
	m.putInCache(cacheKey(loc.UUIDStr(), name), value)
	return nil
}

func (m *Iopx) FRemoveXattr(ctx context.Context, f *archtypes.File, name string) error {
	if err := m.Base.Child.FRemoveXattr(ctx, f, name); err != nil {
		return err
	}
	m.dropFromCache(cacheKey(f.Loc.UUIDStr(), name))
	return nil
}

func (m *Iopx) RemoveXattr(ctx context.Context, loc *archtypes.Location, name string) error {
	if err := m.Base.Child.RemoveXattr(ctx, loc, name); err != nil {
		return err
	}
	m.dropFromCache(cacheKey(loc.UUIDStr(), name))
	return nil
}

// Ready reports whether the remote memcache client is usable.
func (m *Iopx) Ready() bool {
	return m.ready.Load()
}
