// Package engine implements spec.md §4.2: the engine owns the two
// priority executors, builds iopx trees via MkTree, and canonicalises
// store identifiers across products.
package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/openarchive/openarchive/internal/enginepool"
	"github.com/openarchive/openarchive/internal/memcache"
)

// Config controls executor sizing. Fast defaults on (latency-sensitive
// metadata/small-read traffic); slow defaults off (bulk transfer, enabled
// only when a workload needs a dedicated large-I/O thread group).
type Config struct {
	EnableFast bool
	EnableSlow bool

	FastThreads int
	SlowThreads int

	FastQueueDepth int
	SlowQueueDepth int

	// PoolInitialBlock seeds internal/enginepool's geometric growth,
	// fed from config.Configuration.ExpandVal.
	PoolInitialBlock int

	MemcacheFactory func() memcache.Client

	Logger *slog.Logger
}

// Engine is the top-level object an orchestrator (backup/stub/scan)
// constructs once, builds trees from, and stops on shutdown.
type Engine struct {
	cfg Config

	fast *Executor
	slow *Executor

	pools *enginepool.Registry

	logger *slog.Logger

	mu       sync.Mutex
	storeIDs map[string]string

	memcacheOnce   sync.Once
	memcacheClient memcache.Client
}

// New builds an Engine per cfg.EnableFast/EnableSlow, installing
// thread-local pools (internal/enginepool) on every worker before it
// services its first item, per spec.md §4.2.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	e := &Engine{
		cfg:      cfg,
		pools:    enginepool.NewRegistry(cfg.PoolInitialBlock, cfg.MemcacheFactory),
		logger:   logger,
		storeIDs: make(map[string]string),
	}

	if cfg.EnableFast {
		e.fast = newExecutor("fast", cfg.FastThreads, cfg.FastQueueDepth, e.installLocal, logger)
	}
	if cfg.EnableSlow {
		e.slow = newExecutor("slow", cfg.SlowThreads, cfg.SlowQueueDepth, e.installLocal, logger)
	}
	return e
}

func (e *Engine) installLocal(workerID int) {
	e.pools.Get(workerID)
}

// GetIOService returns the fast or slow executor, or nil if that class was
// never enabled.
func (e *Engine) GetIOService(fast bool) *Executor {
	if fast {
		return e.fast
	}
	return e.slow
}

// GetNumFastThreads reports the fast pool's thread count, 0 if disabled.
func (e *Engine) GetNumFastThreads() int {
	if e.fast == nil {
		return 0
	}
	return e.fast.NumThreads()
}

// GetNumSlowThreads reports the slow pool's thread count, 0 if disabled.
func (e *Engine) GetNumSlowThreads() int {
	if e.slow == nil {
		return 0
	}
	return e.slow.NumThreads()
}

// Memcache returns the single memcache.Client the engine's meta iopx
// decorators share, building it from cfg.MemcacheFactory (an in-process
// MemoryClient if none was given) on first use.
func (e *Engine) Memcache() memcache.Client {
	e.memcacheOnce.Do(func() {
		if e.cfg.MemcacheFactory != nil {
			e.memcacheClient = e.cfg.MemcacheFactory()
		} else {
			e.memcacheClient = memcache.NewMemoryClient()
		}
	})
	return e.memcacheClient
}

// MapStoreID canonicalises a store identifier for a product, caching the
// result so repeated lookups for the same (product, in) pair are free.
// This stands in for the vendor's map_cvlt_store_id, which resolves a
// logical subclient name to its canonical archive-store store id; for the
// volume-FS product the identity mapping applies.
func (e *Engine) MapStoreID(product, in string) string {
	key := product + "\x00" + in
	e.mu.Lock()
	defer e.mu.Unlock()
	if out, ok := e.storeIDs[key]; ok {
		return out
	}
	out := canonicalizeStoreID(product, in)
	e.storeIDs[key] = out
	return out
}

func canonicalizeStoreID(product, in string) string {
	if product != "archivestore" {
		return in
	}
	return strings.ToLower(strings.TrimSpace(in))
}

// Stop releases the keepalive token of each executor, draining and joining
// their worker threads. Idempotent: calling Stop twice is safe because
// Executor.Stop itself is idempotent.
func (e *Engine) Stop() {
	if e.fast != nil {
		e.fast.Stop()
	}
	if e.slow != nil {
		e.slow.Stop()
	}
}

// errUnknownProduct is returned by MkTree for a cfg.Product it doesn't
// recognise.
var errUnknownProduct = fmt.Errorf("engine: unknown product")
