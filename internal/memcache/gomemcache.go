package memcache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// GomemcacheClient wraps bradfitz/gomemcache, the one concrete Client
// implementation that actually speaks the memcached wire protocol (spec.md
// §6 "Memcache wire").
type GomemcacheClient struct {
	client *memcache.Client
}

// NewGomemcacheClient dials the given memcached servers. Resolution of the
// client — standing in for the original's dynamic symbol binding — happens
// here, once, at construction; a failure here is what puts the owning meta
// iopx into "not ready" state.
func NewGomemcacheClient(servers ...string) (*GomemcacheClient, error) {
	if len(servers) == 0 {
		return nil, errors.New("memcache: at least one server address is required")
	}
	c := memcache.New(servers...)
	c.Timeout = 2 * time.Second
	return &GomemcacheClient{client: c}, nil
}

func (g *GomemcacheClient) Get(key string) ([]byte, error) {
	item, err := g.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return item.Value, nil
}

func (g *GomemcacheClient) Set(key string, value []byte, ttl time.Duration) error {
	return g.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(ttl.Seconds()),
	})
}

func (g *GomemcacheClient) Delete(key string) error {
	err := g.client.Delete(key)
	if err != nil && errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (g *GomemcacheClient) Close() error {
	return nil
}
