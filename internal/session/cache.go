package session

import (
	"container/list"
	"sync"

	"gallery/internal/metrics"
)

// DefaultCacheSize is the default number of thumbnails kept in memory.
const DefaultCacheSize = 200

type cacheKey struct {
	path string
	size int
}

type cacheEntry struct {
	key     cacheKey
	dataURI string
}

// Cache is a fixed-size in-memory thumbnail cache with first-in first-out
// eviction. Lookups do not refresh an entry's position.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[cacheKey]*list.Element
}

// NewCache returns a Cache holding up to capacity thumbnails. A
// non-positive capacity disables caching.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: max(capacity, 0),
		order:    list.New(),
		entries:  make(map[cacheKey]*list.Element),
	}
}

// Get returns the cached data URI for path at size.
func (c *Cache) Get(path string, size int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[cacheKey{path, size}]; ok {
		metrics.ThumbnailCacheHits.Inc()
		return el.Value.(*cacheEntry).dataURI, true
	}
	metrics.ThumbnailCacheMisses.Inc()
	return "", false
}

// Put stores a thumbnail, evicting the oldest entry when full. Storing an
// existing key replaces its value and makes it the newest entry.
func (c *Cache) Put(path string, size int, dataURI string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity == 0 {
		return
	}
	key := cacheKey{path, size}
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).dataURI = dataURI
		c.order.MoveToBack(el)
		return
	}

	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, dataURI: dataURI})
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached thumbnails.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[cacheKey]*list.Element)
}
