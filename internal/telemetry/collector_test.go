package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	for i := 0; i < 10; i++ {
		c.RecordSearch(time.Millisecond)
	}
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	snap := c.Snapshot()
	assert.Equal(t, uint64(10), snap.TotalSearches)
	assert.Equal(t, uint64(3), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.75, snap.CacheHitRate, 1e-9)
}

func TestCollectorPercentiles(t *testing.T) {
	c := NewCollector()

	// 1ms..100ms uniformly.
	for i := 1; i <= 100; i++ {
		c.RecordSearch(time.Duration(i) * time.Millisecond)
	}

	snap := c.Snapshot()
	assert.InDelta(t, 50, float64(snap.LatencyP50.Milliseconds()), 2)
	assert.InDelta(t, 95, float64(snap.LatencyP95.Milliseconds()), 2)
	assert.InDelta(t, 99, float64(snap.LatencyP99.Milliseconds()), 2)
}

func TestCollectorEmptySnapshot(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()

	assert.Zero(t, snap.TotalSearches)
	assert.Zero(t, snap.CacheHitRate)
	assert.Zero(t, snap.LatencyP50)
	assert.GreaterOrEqual(t, snap.Uptime, time.Duration(0))
}

func TestCollectorConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.RecordSearch(time.Duration(i) * time.Microsecond)
				c.RecordCacheMiss()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, uint64(16*500), snap.TotalSearches)
	assert.Equal(t, uint64(16*500), snap.CacheMisses)
}

func TestCollectorReservoirBounded(t *testing.T) {
	c := NewCollector()
	for i := 0; i < reservoirSize*4; i++ {
		c.RecordSearch(time.Millisecond)
	}
	for _, s := range c.shards {
		assert.LessOrEqual(t, len(s.samples), reservoirSize)
	}
}
