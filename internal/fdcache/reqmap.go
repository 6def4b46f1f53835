package fdcache

import (
	"fmt"

	"github.com/openarchive/openarchive/internal/archtypes"
)

// rqmapEntry coalesces every parent request waiting on one in-flight
// aligned read-ahead generator.
type rqmapEntry struct {
	slotIndex  int
	alignedOff int64
	generator  *archtypes.Request
	parents    []*archtypes.Request // FIFO order of attachment
}

func genKey(slotIndex int, alignedOff int64) string {
	return fmt.Sprintf("%d:%d", slotIndex, alignedOff)
}

// requestMap coalesces concurrent reads that land on the same generator,
// guarded by a spinlock per spec.md §5 ("short critical sections only").
type requestMap struct {
	mu      spinlock
	entries map[string]*rqmapEntry
}

func newRequestMap() *requestMap {
	return &requestMap{entries: make(map[string]*rqmapEntry)}
}

func (m *requestMap) lookup(key string) (*rqmapEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

// attach adds req as a parent of the generator already registered under
// key, returning false if no such generator exists (the caller then
// releases the slot's op_mutex and retries its lookup).
func (m *requestMap) attach(key string, req *archtypes.Request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	e.parents = append(e.parents, req)
	return true
}

func (m *requestMap) register(key string, e *rqmapEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

func (m *requestMap) pop(key string) (*rqmapEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return e, ok
}
