package reader

import (
	"github.com/coocood/freecache"
)

// MinLOBCacheSize is the smallest cache freecache will allocate
const MinLOBCacheSize = 512 * 1024

// LOBCache is a bounded in-memory cache of resolved external large object payloads.
// A nil cache disables caching.
type LOBCache struct {
	cache *freecache.Cache
}

// NewLOBCache creates a cache holding up to size bytes; size <= 0 returns nil
func NewLOBCache(size int) *LOBCache {
	if size <= 0 {
		return nil
	}
	if size < MinLOBCacheSize {
		size = MinLOBCacheSize
	}
	return &LOBCache{cache: freecache.NewCache(size)}
}

// Get returns a cached payload
func (c *LOBCache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	b, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores a payload; payloads too large for the cache are skipped
func (c *LOBCache) Set(key string, payload []byte) {
	if c == nil {
		return
	}
	_ = c.cache.Set([]byte(key), payload, 0)
}

// HitCount returns the number of cache hits
func (c *LOBCache) HitCount() int64 {
	if c == nil {
		return 0
	}
	return c.cache.HitCount()
}

// EntryCount returns the number of cached payloads
func (c *LOBCache) EntryCount() int64 {
	if c == nil {
		return 0
	}
	return c.cache.EntryCount()
}

// Clear drops every entry
func (c *LOBCache) Clear() {
	if c == nil {
		return
	}
	c.cache.Clear()
}
