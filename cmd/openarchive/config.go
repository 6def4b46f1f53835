package main

import (
	"github.com/openarchive/openarchive/internal/config"
	"github.com/openarchive/openarchive/internal/engine"
	"github.com/openarchive/openarchive/internal/memcache"
)

// engineConfigFromCfg maps the flat config.Configuration onto engine.Config.
// expand_val sets the per-thread pool's initial block size
// (internal/enginepool; later blocks double), per SPEC_FULL.md §A.2.
// memcacheServers, bound from
// the --memcache-servers persistent flag, selects a real memcached client
// over the in-process fallback when set.
func engineConfigFromCfg(cfg *config.Configuration) engine.Config {
	ecfg := engine.Config{
		EnableFast:       true,
		FastThreads:      4,
		PoolInitialBlock: cfg.ExpandVal,
	}
	if len(memcacheServers) > 0 {
		servers := memcacheServers
		ecfg.MemcacheFactory = func() memcache.Client {
			client, err := memcache.NewGomemcacheClient(servers...)
			if err != nil {
				return memcache.NewMemoryClient()
			}
			return client
		}
	}
	return ecfg
}
