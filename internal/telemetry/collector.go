// Package telemetry aggregates runtime counters and latency distributions
// for the statistics endpoint. Recording is sharded so that concurrent
// searches never contend on a single lock; Snapshot merges all shards.
package telemetry

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const reservoirSize = 1024

// shard holds counters and a bounded latency window for a subset of callers.
// The reservoir overwrites oldest samples once full, keeping recent behavior
// representative without unbounded growth.
type shard struct {
	searches    atomic.Uint64
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool

	_ [32]byte // pad to reduce false sharing between shards
}

func (s *shard) record(d time.Duration) {
	s.mu.Lock()
	if len(s.samples) < reservoirSize {
		s.samples = append(s.samples, d)
	} else {
		s.samples[s.next] = d
		s.filled = true
	}
	s.next = (s.next + 1) % reservoirSize
	s.mu.Unlock()
}

// Collector accumulates search telemetry across the process lifetime.
type Collector struct {
	shards  []*shard
	counter atomic.Uint64
	started time.Time
}

// NewCollector builds a collector with one shard per logical CPU.
func NewCollector() *Collector {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{samples: make([]time.Duration, 0, reservoirSize)}
	}
	return &Collector{shards: shards, started: time.Now()}
}

// pick distributes recordings round-robin across shards. Strict CPU
// affinity is not needed, only contention spreading.
func (c *Collector) pick() *shard {
	return c.shards[c.counter.Add(1)%uint64(len(c.shards))]
}

// RecordSearch notes one completed search and its end-to-end latency.
func (c *Collector) RecordSearch(latency time.Duration) {
	s := c.pick()
	s.searches.Add(1)
	s.record(latency)
}

// RecordCacheHit notes a search served from the result cache.
func (c *Collector) RecordCacheHit() {
	c.pick().cacheHits.Add(1)
}

// RecordCacheMiss notes a search that had to be computed.
func (c *Collector) RecordCacheMiss() {
	c.pick().cacheMisses.Add(1)
}

// Snapshot is the merged view of all shards at one instant.
type Snapshot struct {
	TotalSearches uint64
	CacheHits     uint64
	CacheMisses   uint64
	CacheHitRate  float64
	LatencyP50    time.Duration
	LatencyP95    time.Duration
	LatencyP99    time.Duration
	Uptime        time.Duration
}

// Snapshot merges every shard without blocking recorders for longer than
// a per-shard copy. Percentiles are computed over the merged window.
func (c *Collector) Snapshot() Snapshot {
	var snap Snapshot
	merged := make([]time.Duration, 0, reservoirSize)

	for _, s := range c.shards {
		snap.TotalSearches += s.searches.Load()
		snap.CacheHits += s.cacheHits.Load()
		snap.CacheMisses += s.cacheMisses.Load()

		s.mu.Lock()
		merged = append(merged, s.samples...)
		s.mu.Unlock()
	}

	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups)
	}

	if len(merged) > 0 {
		sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
		snap.LatencyP50 = percentileOf(merged, 0.50)
		snap.LatencyP95 = percentileOf(merged, 0.95)
		snap.LatencyP99 = percentileOf(merged, 0.99)
	}

	snap.Uptime = time.Since(c.started)
	return snap
}

func percentileOf(sorted []time.Duration, p float64) time.Duration {
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
