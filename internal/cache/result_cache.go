// Package cache implements the query result cache: an LRU with TTL expiry,
// keyed by a quantized query fingerprint and versioned by index generation.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/siri1404/NeuroRAG/internal/core"
	"github.com/siri1404/NeuroRAG/internal/metrics"
)

type cacheItem struct {
	Key        uint64
	Value      core.SearchResult
	Generation uint64
	ExpiresAt  time.Time
}

// ResultCache maps query fingerprints to previously computed result sets.
//
// Expiry is lazy: an expired or generation-stale entry answers as a miss and
// is purged on the next Put that touches it or by capacity eviction. Get never
// blocks on anything but the lock itself.
type ResultCache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[uint64]*list.Element
	lru      *list.List
}

// NewResultCache creates a cache holding at most capacity result sets.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[uint64]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached result for key if it is fresh and was computed
// against the given index generation.
//
// LRU position is not updated on reads: for read-heavy workloads the write
// lock traffic costs more than the recency signal is worth.
func (c *ResultCache) Get(key uint64, generation uint64) (core.SearchResult, bool) {
	c.mu.RLock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.RUnlock()
		metrics.QueryCacheMissesTotal.WithLabelValues("absent").Inc()
		return core.SearchResult{}, false
	}

	item := elem.Value.(*cacheItem)
	if item.Generation != generation {
		c.mu.RUnlock()
		metrics.QueryCacheMissesTotal.WithLabelValues("stale_generation").Inc()
		return core.SearchResult{}, false
	}
	if time.Now().After(item.ExpiresAt) {
		c.mu.RUnlock()
		metrics.QueryCacheMissesTotal.WithLabelValues("expired").Inc()
		return core.SearchResult{}, false
	}

	value := item.Value
	c.mu.RUnlock()
	metrics.QueryCacheHitsTotal.Inc()
	return value, true
}

// Put stores a result computed against the given index generation.
// Concurrent puts for the same key are last-writer-wins; results for a fixed
// generation are deterministic, so either write is correct.
func (c *ResultCache) Put(key uint64, value core.SearchResult, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		item := elem.Value.(*cacheItem)
		item.Value = value
		item.Generation = generation
		item.ExpiresAt = time.Now().Add(c.ttl)
		return
	}

	elem := c.lru.PushFront(&cacheItem{
		Key:        key,
		Value:      value,
		Generation: generation,
		ExpiresAt:  time.Now().Add(c.ttl),
	})
	c.items[key] = elem

	if c.lru.Len() > c.capacity {
		c.evictOldest()
	}
	metrics.QueryCacheSize.Set(float64(c.lru.Len()))
}

func (c *ResultCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*cacheItem).Key)
	metrics.QueryCacheEvictionsTotal.Inc()
}

// Len returns the number of entries currently held, fresh or not.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Clear purges the cache.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.items = make(map[uint64]*list.Element)
	metrics.QueryCacheSize.Set(0)
}
