package session

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds resolved sessions keyed by credential for a bounded TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (*Session, bool)
	Add(key string, session *Session)
	Remove(key string)
	Purge()
}

// lruCache is the default Cache backed by an expirable LRU: entries
// fall out on TTL or capacity pressure, whichever comes first.
type lruCache struct {
	lru *lru.LRU[string, *Session]
}

// NewCache creates the default session cache.
func NewCache(size int, ttl time.Duration) Cache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return &lruCache{
		lru: lru.NewLRU[string, *Session](size, nil, ttl),
	}
}

func (c *lruCache) Get(key string) (*Session, bool) {
	return c.lru.Get(key)
}

func (c *lruCache) Add(key string, session *Session) {
	c.lru.Add(key, session)
}

func (c *lruCache) Remove(key string) {
	c.lru.Remove(key)
}

func (c *lruCache) Purge() {
	c.lru.Purge()
}
