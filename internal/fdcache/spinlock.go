package fdcache

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a short-critical-section lock for the request map, matching
// spec.md §4.3/§5's call for a spinlock rather than a mutex there: entries
// are only ever held across a handful of map operations.
type spinlock struct {
	held atomic.Bool
}

func (s *spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	s.held.Store(false)
}
