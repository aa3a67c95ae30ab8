package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts search requests by final outcome.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurorag_searches_total",
			Help: "Total number of search requests by outcome",
		},
		[]string{"status"},
	)

	// SearchDurationSeconds measures end-to-end search latency.
	SearchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neurorag_search_duration_seconds",
			Help:    "End-to-end latency of search requests",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// QueryCacheHitsTotal counts result cache hits.
	QueryCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neurorag_query_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	// QueryCacheMissesTotal counts result cache misses, including lazy
	// TTL expiries and generation mismatches.
	QueryCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurorag_query_cache_misses_total",
			Help: "Total number of result cache misses by reason",
		},
		[]string{"reason"},
	)

	// QueryCacheEvictionsTotal counts LRU capacity evictions.
	QueryCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neurorag_query_cache_evictions_total",
			Help: "Total number of result cache evictions due to capacity",
		},
	)

	// QueryCacheSize tracks the current number of cached result sets.
	QueryCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neurorag_query_cache_size",
			Help: "Current number of entries in the result cache",
		},
	)

	// DispatchQueueDepth tracks the number of units waiting for a worker.
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neurorag_dispatch_queue_depth",
			Help: "Current number of search units queued for execution",
		},
	)

	// DispatchRejectionsTotal counts units rejected because the queue was full.
	DispatchRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neurorag_dispatch_rejections_total",
			Help: "Total number of search units rejected due to queue overload",
		},
	)

	// DispatchAbandonedTotal counts units whose deadline passed before delivery.
	DispatchAbandonedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neurorag_dispatch_abandoned_total",
			Help: "Total number of search units abandoned after deadline expiry",
		},
	)

	// VectorIndexSize tracks the number of live vectors in the index.
	VectorIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neurorag_vector_index_size",
			Help: "Current number of live vectors in the index",
		},
	)

	// IndexGeneration exposes the index generation counter used for cache
	// invalidation.
	IndexGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neurorag_index_generation",
			Help: "Current index generation number",
		},
	)

	// InsertsTotal counts vector insert operations.
	InsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurorag_inserts_total",
			Help: "Total number of vector insert operations",
		},
		[]string{"status"},
	)

	// RemovalsTotal counts vector removal operations.
	RemovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurorag_removals_total",
			Help: "Total number of vector removal operations",
		},
		[]string{"status"},
	)

	// CompactionsTotal counts index compactions.
	CompactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "neurorag_compactions_total",
			Help: "Total number of index compactions",
		},
	)

	// RateLimitRequestsTotal counts API rate limiter decisions.
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurorag_rate_limit_requests_total",
			Help: "Total number of requests seen by the rate limiter",
		},
		[]string{"decision"},
	)

	// AffinityAllocationsTotal counts arena allocations by outcome. The
	// "degraded" outcome means a domain hint could not be honored and the
	// allocation fell back to the default domain.
	AffinityAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neurorag_affinity_allocations_total",
			Help: "Total number of locality-domain allocations by outcome",
		},
		[]string{"outcome"},
	)

	// ArenaBytesAllocated tracks bytes currently held by arena allocators.
	ArenaBytesAllocated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "neurorag_arena_bytes_allocated",
			Help: "Bytes currently allocated from locality-domain arenas",
		},
	)
)
