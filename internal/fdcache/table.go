package fdcache

import (
	"sync"

	"github.com/openarchive/openarchive/internal/archtypes"
)

// slotTable is the circular array of cached-fd slots plus the uuid→slot
// index map, both guarded by one reader/writer lock (spec.md §4.3).
type slotTable struct {
	mu sync.RWMutex

	slots   []*slot
	front   int // next insertion index
	rear    int // next eviction index
	count   int
	uuidMap map[string]int
}

func newSlotTable(capacity int) *slotTable {
	slots := make([]*slot, capacity)
	for i := range slots {
		slots[i] = &slot{}
	}
	return &slotTable{
		slots:   slots,
		uuidMap: make(map[string]int, capacity),
	}
}

// lookup returns the slot index cached for uuidStr, if any.
func (t *slotTable) lookup(uuidStr string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.uuidMap[uuidStr]
	return idx, ok
}

// reserveVictim picks the slot to use for a new open: an unused array
// position if the table has not yet reached capacity, otherwise the
// oldest live slot (strict FIFO, no recency bias — spec.md §4.3's
// deliberate streaming-workload policy). The returned evictedFile, if
// non-nil, must be closed by the caller through the child iopx.
func (t *slotTable) reserveVictim() (idx int, evictedFile *archtypes.File, hadVictim bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count < len(t.slots) {
		idx = t.front
		t.front = (t.front + 1) % len(t.slots)
		t.count++
		return idx, nil, false
	}

	idx = t.rear
	t.rear = (t.rear + 1) % len(t.slots)
	victim := t.slots[idx]
	hadVictim = victim.valid
	if victim.valid {
		delete(t.uuidMap, victim.uuidStr)
		evictedFile = victim.file
	}
	victim.valid = false
	return idx, evictedFile, hadVictim
}

func (t *slotTable) publish(uuidStr string, idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uuidMap[uuidStr] = idx
}

func (t *slotTable) unpublish(uuidStr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.uuidMap, uuidStr)
}

func (t *slotTable) trySetBusy(uuidStr string) (idx int, s *slot, found, acquired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.uuidMap[uuidStr]
	if !ok {
		return 0, nil, false, false
	}
	sl := t.slots[i]
	if sl.valid && !sl.busy {
		sl.busy = true
		return i, sl, true, true
	}
	return i, sl, true, false
}
