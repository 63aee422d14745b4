package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an LRU bounded by the total size of its values.
type MemoryCache struct {
	capacity int64
	size     int64

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key       string
	value     []byte
	timestamp time.Time
	hits      int64
}

// NewMemoryCache creates a memory cache holding up to capacity bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Get returns the value for key and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)
	entry.hits++

	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return entry.value, true
}

// Put stores value, evicting least recently used entries to make room.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.size+n > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	c.items[key] = c.eviction.PushFront(&memoryEntry{key: key, value: value, timestamp: time.Now()})
	c.size += n
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
	return nil
}

// Contains reports whether key is cached without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Size returns the total size of the cached values.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns a snapshot of the cache metrics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	stats.computeHitRate()
	return stats
}

// Oldest returns metadata for up to n least recently used entries.
func (c *MemoryCache) Oldest(n int) []Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Metadata, 0, n)
	for elem := c.eviction.Back(); elem != nil && len(out) < n; elem = elem.Prev() {
		e := elem.Value.(*memoryEntry)
		out = append(out, Metadata{
			Key:       e.key,
			Size:      int64(len(e.value)),
			Timestamp: e.timestamp,
			Hits:      e.hits,
			Level:     LevelMemory,
		})
	}
	return out
}

// Prune removes entries stored before now-maxAge.
func (c *MemoryCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).timestamp.Before(cutoff) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// evictOldest must be called with mu held.
func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

// removeElement must be called with mu held.
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
