package engine

import (
	"strconv"
	"strings"

	"github.com/openarchive/openarchive/internal/cache"
	"github.com/openarchive/openarchive/internal/circuit"
	"github.com/openarchive/openarchive/internal/driver/archivestore"
	"github.com/openarchive/openarchive/internal/driver/volumefs"
	"github.com/openarchive/openarchive/internal/fdcache"
	"github.com/openarchive/openarchive/internal/iopx"
	"github.com/openarchive/openarchive/internal/memcache"
	"github.com/openarchive/openarchive/internal/metaiopx"
	"github.com/openarchive/openarchive/internal/metrics"
	"github.com/openarchive/openarchive/internal/perfiopx"
	"github.com/openarchive/openarchive/internal/storage/s3"
)

// TreeConfig describes one iopx tree to build: the product/store pair that
// selects the terminal driver, plus the decorator toggles and knobs for
// each optional layer above it. Product is either "glusterfs" (the
// distributed-volume source) or "archivestore" (the vendor sink).
type TreeConfig struct {
	Product string
	Store   string

	// Distributed-volume product fields, parsed from cfg.store per
	// spec.md §4.2: "{hostname?, port?, volume, protocol?}".
	VolumeFS volumefs.Config

	// Vendor archive-store product fields.
	S3Backend      *s3.Backend
	CircuitBreaker *circuit.Config

	EnablePerf    bool
	EnableMeta    bool
	EnableFDCache bool

	MemcacheClient memcache.Client
	MetaTTL        cache.CacheConfig
	FDCache        fdcache.Config

	MetricsCollector *metrics.Collector
}

// MkTree builds one iopx tree bottom-up: the driver selected by cfg.Product
// at the leaf, then (if enabled) perf, then (if enabled) meta, then (if enabled)
// fd-cache, pushed on in that fixed order per spec.md §4.2.
func (e *Engine) MkTree(cfg TreeConfig) (iopx.Operations, error) {
	var root iopx.Operations

	switch cfg.Product {
	case "glusterfs", "volumefs":
		root = volumefs.New(cfg.VolumeFS, e.logger)

	case "archivestore":
		storeID := e.MapStoreID(cfg.Product, cfg.Store)
		breakerCfg := circuit.Config{}
		if cfg.CircuitBreaker != nil {
			breakerCfg = *cfg.CircuitBreaker
		}
		breaker := circuit.NewCircuitBreaker("archivestore:"+storeID, breakerCfg)
		root = archivestore.New(cfg.S3Backend, breaker, e.logger)

	default:
		return nil, errUnknownProduct
	}

	if cfg.EnablePerf {
		root = perfiopx.New(root, cfg.MetricsCollector, e.logger)
	}

	if cfg.EnableMeta {
		metaCfg := metaiopx.Config{
			TTL:        cfg.MetaTTL.TTL,
			FrontCache: cache.NewLRUCache(&cfg.MetaTTL),
		}
		root = metaiopx.New(root, cfg.MemcacheClient, metaCfg, e.logger)
	}

	if cfg.EnableFDCache {
		root = fdcache.New(root, cfg.FDCache)
	}

	return root, nil
}

// ParseVolumeStore parses the distributed-volume store encoding spec.md
// §4.2 describes: "{hostname?, port?, volume, protocol?}" packed into
// cfg.store as "[protocol://][hostname[:port]/]volume".
func ParseVolumeStore(store string) volumefs.Config {
	cfg := volumefs.Config{Protocol: "glusterfs"}

	rest := store
	if idx := strings.Index(rest, "://"); idx >= 0 {
		cfg.Protocol = rest[:idx]
		rest = rest[idx+3:]
	}

	parts := strings.SplitN(rest, "/", 2)
	hostPart := parts[0]
	if len(parts) == 2 {
		cfg.Volume = parts[1]
	} else {
		cfg.Volume = hostPart
		return cfg
	}

	if host, port, ok := strings.Cut(hostPart, ":"); ok {
		cfg.Hostname = host
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	} else {
		cfg.Hostname = hostPart
	}
	return cfg
}
