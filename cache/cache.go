package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is a byte-value cache with TTL. Implementations must be safe for
// concurrent use. A miss is (nil, false, nil); the error is reserved for
// backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryConfig configures the in-memory cache.
type MemoryConfig struct {
	// MaxSize is the maximum number of items in the cache.
	MaxSize int
	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxSize:    10000,
		DefaultTTL: 5 * time.Minute,
	}
}

// Memory implements Cache in process memory with TTL expiration and LRU
// eviction. It follows the cache-aside pattern: callers check the cache
// first, then fall back to the source of truth and populate on miss.
type Memory struct {
	mu         sync.RWMutex
	items      map[string]*list.Element
	eviction   *list.List // front = most recently used, back = least recently used
	maxSize    int
	defaultTTL time.Duration

	hits      int64
	misses    int64
	evictions int64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an in-memory cache.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}

	return &Memory{
		items:      make(map[string]*list.Element, cfg.MaxSize),
		eviction:   list.New(),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
	}
}

// Get retrieves a value. Expired entries count as misses and are dropped.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return nil, false, nil
	}

	c.eviction.MoveToFront(elem)
	c.hits++
	return entry.value, true, nil
}

// Set stores a value. A non-positive TTL uses the configured default.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		c.eviction.MoveToFront(elem)
		return nil
	}

	for c.eviction.Len() >= c.maxSize {
		c.evictLocked()
	}

	elem := c.eviction.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	c.items[key] = elem
	return nil
}

// Delete removes a key from the cache.
func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Clear removes all entries.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.maxSize)
	c.eviction.Init()
}

// Len returns the number of items held, including expired but unevicted ones.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eviction.Len()
}

// Stats holds cache counters.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

// Stats returns cache statistics.
func (c *Memory) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Size:      c.eviction.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   c.hitRateLocked(),
	}
}

func (c *Memory) hitRateLocked() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// PurgeExpired removes all expired entries and reports how many were dropped.
// Useful as a periodic sweep for long-idle keys.
func (c *Memory) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	purged := 0

	var next *list.Element
	for e := c.eviction.Front(); e != nil; e = next {
		next = e.Next()
		entry := e.Value.(*memoryEntry)
		if now.After(entry.expiresAt) {
			c.removeLocked(e)
			purged++
		}
	}

	return purged
}

// evictLocked removes the least recently used entry.
func (c *Memory) evictLocked() {
	back := c.eviction.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
	c.evictions++
}

func (c *Memory) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.key)
	c.eviction.Remove(elem)
}
