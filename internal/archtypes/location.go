// Package archtypes holds the small value types shared across the iopx
// tree: locations, file handles, requests and attribute scratch objects.
package archtypes

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Location identifies a single object inside a product/store namespace,
// mirroring the original arch_loc: a product id, a store id, a path and a
// uuid. A zero-value Location has a nil uuid whose string form is still the
// canonical all-zero UUID, never empty.
type Location struct {
	mu       sync.RWMutex
	product  string
	store    string
	path     string
	id       uuid.UUID
	idString string
}

// NewLocation returns a Location for the given product/store/path with a
// nil uuid.
func NewLocation(product, store, path string) *Location {
	l := &Location{
		product: product,
		store:   store,
		path:    path,
	}
	l.idString = l.id.String()
	return l
}

func (l *Location) Product() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.product
}

func (l *Location) Store() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store
}

func (l *Location) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

func (l *Location) UUID() uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

// UUIDStr returns the cached canonical string form of the uuid, refreshed
// on every setter that mutates it.
func (l *Location) UUIDStr() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idString
}

func (l *Location) SetPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.path = path
}

func (l *Location) SetUUID(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = id
	l.idString = id.String()
}

// NewUUID assigns a freshly generated random uuid to the location.
func (l *Location) NewUUID() uuid.UUID {
	id := uuid.New()
	l.SetUUID(id)
	return id
}

func (l *Location) String() string {
	return fmt.Sprintf("%s:%s:%s[%s]", l.Product(), l.Store(), l.Path(), l.UUIDStr())
}

// Clone returns a deep, independent copy of the location.
func (l *Location) Clone() *Location {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Location{
		product:  l.product,
		store:    l.store,
		path:     l.path,
		id:       l.id,
		idString: l.idString,
	}
}
