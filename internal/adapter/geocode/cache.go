package geocode

import (
	"context"
	"fmt"
	"sync"

	"github.com/oceanguard/hazard-fusion/internal/observability"
)

// AreaNamer resolves a coordinate to an area name.
type AreaNamer interface {
	AreaName(ctx context.Context, lat, lon float64) (string, error)
}

// Cached wraps an AreaNamer with an in-memory LRU cache. Keys round to three
// decimal places (about 110m), so centroids that drift slightly between
// fusions reuse the same entry.
type Cached struct {
	inner   AreaNamer
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around an area namer.
func NewCached(inner AreaNamer, maxEntries int, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *Cached) AreaName(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)
	if name, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return name, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	name, err := c.inner.AreaName(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	// Empty results stay uncached so transient "not found" responses retry.
	if name != "" {
		c.cache.put(key, name)
	}
	return name, nil
}

// lruCache is a small thread-safe LRU for area names.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value string
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
