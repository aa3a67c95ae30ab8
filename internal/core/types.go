package core

import "time"

// VectorEntry is a stored embedding with its identifier and opaque metadata.
// Entries are immutable after insertion; removal is a logical tombstone until
// the owning index compacts.
type VectorEntry struct {
	ID       int64
	Values   []float32
	Metadata map[string]string
}

// SearchRequest describes a single k-nearest-neighbor query.
// It is built once by the dispatch coordinator and never mutated.
type SearchRequest struct {
	Query     []float32
	K         int
	Threshold float32
	Filters   map[string]string
	RequestID string
	Deadline  time.Time
}

// SearchResult holds the ordered result set for one query.
// Entries are ordered by descending score, ties broken by ascending ID.
type SearchResult struct {
	IDs       []int64
	Scores    []float32
	Metadata  []map[string]string
	FromCache bool
	Latency   time.Duration
}

// Stats is the snapshot returned by the statistics endpoint.
type Stats struct {
	TotalVectors    int64   `json:"total_vectors"`
	IndexGeneration uint64  `json:"index_generation"`
	MemoryUsageMB   float64 `json:"memory_usage_mb"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	TotalSearches   uint64  `json:"total_searches"`
	LatencyP50Ms    float64 `json:"latency_p50_ms"`
	LatencyP95Ms    float64 `json:"latency_p95_ms"`
	LatencyP99Ms    float64 `json:"latency_p99_ms"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}
