package fdcache

// Config controls the fd-cache's slot table and read-ahead behaviour.
type Config struct {
	// Enabled, when false, makes every operation forward verbatim
	// (spec.md §4.3 "Cache disabled ⇒ all operations forward verbatim").
	Enabled bool

	// Capacity is the number of live open-fd slots kept in the circular
	// array before FIFO eviction kicks in.
	Capacity int

	// RaBitWidth is the number of low bits masked off an offset to compute
	// its aligned read-ahead boundary; RaBufSize is the resulting aligned
	// buffer's size in bytes (normally 1<<RaBitWidth).
	RaBitWidth uint
	RaBufSize  int64
}

// DefaultConfig mirrors the original's 4MiB aligned read-ahead default.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Capacity:   256,
		RaBitWidth: 22, // 4MiB
		RaBufSize:  4 * 1024 * 1024,
	}
}

func (c Config) alignedOffset(offset int64) int64 {
	mask := int64(-1) << c.RaBitWidth
	return offset & mask
}
