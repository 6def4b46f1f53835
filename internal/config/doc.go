/*
Package config reads the engine's configuration from a primary flat
option=value file and an optional secondary YAML overlay.

# Primary file

/etc/archivestore.conf (the path is overridable for tests) holds simple
option=value lines, matching the original cfgparams.cpp reader's semantics:

	log_dir=/var/log/openarchive
	rotation_size=104857600
	free_space=524288000
	log_level=2
	expand_val=16
	flush_interval=30

A missing file is not an error — NewDefault's values stand. Blank lines and
lines starting with '#' are skipped. A zero or unparsable numeric value
leaves the existing default in place rather than zeroing it out.

log_level ranges 0..5 and feeds internal/logging's slog.Level translation
table (0 is least verbose). expand_val sets internal/enginepool's
initial pool block size (later blocks double); flush_interval sets the
logger's periodic flush, and nothing else reads it. Neither's absence is
an error (see SPEC_FULL.md's Open Question decisions).

# Secondary YAML overlay

	config := config.NewDefault()
	_ = config.LoadPrimary("/etc/archivestore.conf")
	_ = config.LoadSecondaryYAML("/etc/archivestore.overrides.yaml")

The overlay covers knobs the flat format has no room for — the front
cache's TTL/eviction policy and the sink's write-buffering — inherited from
the teacher's CacheConfig/WriteBufferConfig shape:

	cache:
	  ttl: 5m
	  max_entries: 100000
	  eviction_policy: weighted_lru
	write_buffer:
	  flush_interval: 30s
	  max_buffers: 1000
*/
package config
