// Package memcache abstracts the meta iopx's remote key/value cache behind
// a small client interface, modeling the original's dynamic symbol binding
// of a memcached client library as a Go interface resolved once at
// construction (see spec.md §4.4, §9 "Dynamic symbol loading").
package memcache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is not present.
var ErrCacheMiss = errors.New("memcache: cache miss")

// Client is the minimal surface the meta iopx needs from a memcached-style
// key/value store: opaque keys, length-prefixed byte values, and a
// per-entry TTL in seconds.
type Client interface {
	// Get returns the stored value for key, or ErrCacheMiss if absent.
	Get(key string) ([]byte, error)
	// Set stores value under key with the given time-to-live. A ttl of
	// zero means the entry never expires.
	Set(key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Close releases any resources the client holds.
	Close() error
}
