// Package engine wires the index, result cache, dispatch pool, metadata
// store, and telemetry into the search service's core.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/affinity"
	"github.com/siri1404/NeuroRAG/internal/cache"
	"github.com/siri1404/NeuroRAG/internal/core"
	"github.com/siri1404/NeuroRAG/internal/dispatch"
	"github.com/siri1404/NeuroRAG/internal/index"
	"github.com/siri1404/NeuroRAG/internal/ingest"
	"github.com/siri1404/NeuroRAG/internal/metadata"
	"github.com/siri1404/NeuroRAG/internal/metrics"
	"github.com/siri1404/NeuroRAG/internal/telemetry"
)

// Config assembles the engine. Zero values fall back to serviceable
// defaults; Dimension and Metric are required.
type Config struct {
	IndexKind index.Kind
	Dimension int
	Metric    core.DistanceMetric
	HNSW      index.HNSWParams

	// IndexPath, when set, is loaded at startup and written by Save.
	IndexPath string
	// MetadataPath is the DuckDB file for vector metadata. Empty means
	// in-memory.
	MetadataPath string

	// MaxResults caps k; larger requests are clamped.
	MaxResults int
	// InvalidateOnInsert makes inserts advance the index generation,
	// invalidating cached results.
	InvalidateOnInsert bool

	CacheEnabled     bool
	CacheCapacity    int
	CacheTTL         time.Duration
	CacheBucketWidth float32

	Dispatch dispatch.Config
	Affinity affinity.Config
}

func (c Config) withDefaults() Config {
	if c.IndexKind == "" {
		c.IndexKind = index.KindFlat
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 100
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 1024
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

// Engine is the top-level search service. All exported methods are safe
// for concurrent use.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	mu  sync.RWMutex // exclusive writer, concurrent readers over idx
	idx index.VectorIndex

	cache     *cache.ResultCache
	coord     *dispatch.Coordinator
	meta      *metadata.Store
	collector *telemetry.Collector
	aff       *affinity.Manager

	closed bool
}

// New builds the engine, loading a persisted index from cfg.IndexPath when
// one exists. A corrupt or incompatible index file is fatal.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	aff := affinity.NewManager(cfg.Affinity, logger)

	idxCfg := index.Config{
		Kind:               cfg.IndexKind,
		Dimension:          cfg.Dimension,
		Metric:             cfg.Metric,
		InvalidateOnInsert: cfg.InvalidateOnInsert,
		Allocator:          aff.Allocator(0),
		HNSW:               cfg.HNSW,
	}

	var idx index.VectorIndex
	var err error
	loadedSnapshot := false
	if cfg.IndexPath != "" {
		if _, statErr := os.Stat(cfg.IndexPath); statErr == nil {
			idx, err = index.Load(cfg.IndexPath, idxCfg)
			if err != nil {
				aff.Close()
				return nil, err
			}
			loadedSnapshot = true
			logger.Info("index loaded from disk",
				zap.String("path", cfg.IndexPath),
				zap.Int("vectors", idx.Len()))
		}
	}
	if idx == nil {
		idx, err = index.New(idxCfg)
		if err != nil {
			aff.Close()
			return nil, err
		}
	}

	meta, err := metadata.Open(cfg.MetadataPath, logger)
	if err != nil {
		aff.Close()
		return nil, err
	}
	if loadedSnapshot {
		reconcileMetadata(context.Background(), meta, idx, logger)
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		idx:       idx,
		meta:      meta,
		collector: telemetry.NewCollector(),
		aff:       aff,
	}
	if cfg.CacheEnabled {
		e.cache = cache.NewResultCache(cfg.CacheCapacity, cfg.CacheTTL)
	}
	e.coord = dispatch.NewCoordinator(cfg.Dispatch, e.executeSearch, aff, logger)

	logger.Info("engine started",
		zap.String("index_kind", string(cfg.IndexKind)),
		zap.Int("dimension", cfg.Dimension),
		zap.String("metric", string(cfg.Metric)),
		zap.Bool("cache_enabled", cfg.CacheEnabled))
	return e, nil
}

// reconcileMetadata drops metadata rows for ids a loaded snapshot no longer
// holds. Rows go stale when a removal's metadata delete fails or the process
// dies between the index save and the metadata write.
func reconcileMetadata(ctx context.Context, meta *metadata.Store, idx index.VectorIndex, logger *zap.Logger) {
	stored, err := meta.LoadAll(ctx)
	if err != nil {
		logger.Warn("metadata load failed, skipping reconciliation", zap.Error(err))
		return
	}

	live := make(map[int64]struct{}, idx.Len())
	for _, entry := range idx.Entries() {
		live[entry.ID] = struct{}{}
	}

	stale := make([]int64, 0)
	for id := range stored {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := meta.Delete(ctx, stale); err != nil {
			logger.Warn("stale metadata delete failed", zap.Error(err))
			return
		}
	}

	remaining, err := meta.Count(ctx)
	if err != nil {
		logger.Warn("metadata count failed", zap.Error(err))
		return
	}
	logger.Info("metadata reconciled against snapshot",
		zap.Int("stale_rows_dropped", len(stale)),
		zap.Int64("vectors_with_metadata", remaining))
}

func (e *Engine) validateSearch(req *core.SearchRequest) error {
	if len(req.Query) != e.cfg.Dimension {
		return core.NewInvalidArgumentError("query_vector",
			fmt.Sprintf("dimension mismatch: got %d, index is %d", len(req.Query), e.cfg.Dimension))
	}
	if req.K < 0 {
		return core.NewInvalidArgumentError("k", "must be >= 0")
	}
	if req.K > e.cfg.MaxResults {
		req.K = e.cfg.MaxResults
	}
	return nil
}

// executeSearch runs on a dispatch worker: index scan plus cache fill.
func (e *Engine) executeSearch(req core.SearchRequest) (core.SearchResult, error) {
	start := time.Now()

	e.mu.RLock()
	gen := e.idx.Generation()
	candidates, err := e.idx.Search(req.Query, req.K, req.Threshold, req.Filters)
	e.mu.RUnlock()
	if err != nil {
		return core.SearchResult{}, err
	}

	result := core.SearchResult{
		IDs:      make([]int64, len(candidates)),
		Scores:   make([]float32, len(candidates)),
		Metadata: make([]map[string]string, len(candidates)),
		Latency:  time.Since(start),
	}
	for i, c := range candidates {
		result.IDs[i] = c.ID
		result.Scores[i] = c.Score
		result.Metadata[i] = c.Meta
	}

	if e.cache != nil {
		fp := cache.Fingerprint(req.Query, req.K, req.Threshold, req.Filters, e.cfg.CacheBucketWidth)
		e.cache.Put(fp, result, gen)
	}
	return result, nil
}

// Search answers one query. Cache hits respond without entering the
// dispatch queue; misses run on the worker pool under the request deadline.
func (e *Engine) Search(ctx context.Context, req core.SearchRequest) (core.SearchResult, error) {
	start := time.Now()
	if err := e.validateSearch(&req); err != nil {
		metrics.SearchesTotal.WithLabelValues("invalid").Inc()
		return core.SearchResult{}, err
	}

	if e.cache != nil {
		fp := cache.Fingerprint(req.Query, req.K, req.Threshold, req.Filters, e.cfg.CacheBucketWidth)
		e.mu.RLock()
		gen := e.idx.Generation()
		e.mu.RUnlock()
		if hit, ok := e.cache.Get(fp, gen); ok {
			hit.FromCache = true
			hit.Latency = time.Since(start)
			e.collector.RecordCacheHit()
			e.collector.RecordSearch(hit.Latency)
			metrics.SearchesTotal.WithLabelValues("ok").Inc()
			metrics.SearchDurationSeconds.Observe(hit.Latency.Seconds())
			return hit, nil
		}
		e.collector.RecordCacheMiss()
	}

	result, err := e.coord.Dispatch(ctx, req)
	latency := time.Since(start)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(searchOutcome(err)).Inc()
		return core.SearchResult{}, err
	}

	result.Latency = latency
	e.collector.RecordSearch(latency)
	metrics.SearchesTotal.WithLabelValues("ok").Inc()
	metrics.SearchDurationSeconds.Observe(latency.Seconds())
	return result, nil
}

func searchOutcome(err error) string {
	switch {
	case core.IsTimeout(err):
		return "timeout"
	case core.IsCapacity(err):
		return "overloaded"
	case core.IsValidation(err):
		return "invalid"
	case core.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}

// BatchSearch answers many queries, reassembling outcomes in request order.
// Units fail independently; errs is index-aligned with reqs.
func (e *Engine) BatchSearch(ctx context.Context, reqs []core.SearchRequest) ([]core.SearchResult, []error) {
	results := make([]core.SearchResult, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Search(ctx, reqs[i])
		}(i)
	}
	wg.Wait()
	return results, errs
}

// AddVectors inserts a batch. The whole batch is validated up front; on
// success the metadata store is updated in the same call.
func (e *Engine) AddVectors(ctx context.Context, entries []core.VectorEntry) error {
	e.mu.Lock()
	err := e.idx.Insert(entries)
	e.mu.Unlock()
	if err != nil {
		metrics.InsertsTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := e.meta.UpsertBatch(ctx, entries); err != nil {
		// The index insert already succeeded; metadata catches up on the
		// next successful write. Logged, not surfaced.
		e.logger.Warn("metadata upsert failed", zap.Error(err))
	}

	metrics.InsertsTotal.WithLabelValues("ok").Inc()
	return nil
}

// RemoveVectors tombstones the given ids and returns how many were live.
func (e *Engine) RemoveVectors(ctx context.Context, ids []int64) (int, error) {
	e.mu.Lock()
	removed, err := e.idx.Remove(ids)
	e.mu.Unlock()
	if err != nil {
		metrics.RemovalsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	if err := e.meta.Delete(ctx, ids); err != nil {
		e.logger.Warn("metadata delete failed", zap.Error(err))
	}

	metrics.RemovalsTotal.WithLabelValues("ok").Inc()
	return removed, nil
}

// VectorMetadata reads the durable metadata for one vector id. An id with
// no stored metadata yields an empty map.
func (e *Engine) VectorMetadata(ctx context.Context, id int64) (map[string]string, error) {
	return e.meta.Get(ctx, id)
}

// Compact reclaims tombstoned entries.
func (e *Engine) Compact(ctx context.Context) error {
	e.mu.Lock()
	err := e.idx.Compact()
	gen := e.idx.Generation()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.logger.Info("index compacted", zap.Uint64("generation", gen))
	return nil
}

// Statistics returns the service snapshot.
func (e *Engine) Statistics() core.Stats {
	e.mu.RLock()
	total := e.idx.Len()
	gen := e.idx.Generation()
	memBytes := e.idx.MemoryBytes()
	e.mu.RUnlock()

	snap := e.collector.Snapshot()
	return core.Stats{
		TotalVectors:    int64(total),
		IndexGeneration: gen,
		MemoryUsageMB:   float64(memBytes) / (1 << 20),
		CacheHitRate:    snap.CacheHitRate,
		TotalSearches:   snap.TotalSearches,
		LatencyP50Ms:    float64(snap.LatencyP50.Microseconds()) / 1000,
		LatencyP95Ms:    float64(snap.LatencyP95.Microseconds()) / 1000,
		LatencyP99Ms:    float64(snap.LatencyP99.Microseconds()) / 1000,
		UptimeSeconds:   snap.Uptime.Seconds(),
	}
}

// Healthy reports whether the engine can serve requests.
func (e *Engine) Healthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed && e.idx != nil
}

// Save persists the index to cfg.IndexPath (or path when non-empty).
func (e *Engine) Save(path string) error {
	if path == "" {
		path = e.cfg.IndexPath
	}
	if path == "" {
		return core.NewInvalidArgumentError("path", "no index path configured")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return index.Save(e.idx, path)
}

// BulkImport loads a Parquet vector file and inserts its rows.
func (e *Engine) BulkImport(ctx context.Context, path string) (int, error) {
	entries, err := ingest.ReadFile(path, e.logger)
	if err != nil {
		return 0, err
	}
	if err := e.AddVectors(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// BulkExport writes all live vectors to a Parquet file.
func (e *Engine) BulkExport(ctx context.Context, path string) (int, error) {
	e.mu.RLock()
	entries := e.idx.Entries()
	e.mu.RUnlock()
	if err := ingest.WriteFile(path, entries, e.logger); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// WarmupCache primes the result cache by running the given queries through
// the normal search path. Failures are ignored; warmup is best-effort.
func (e *Engine) WarmupCache(ctx context.Context, reqs []core.SearchRequest) int {
	if e.cache == nil {
		return 0
	}
	warmed := 0
	for _, req := range reqs {
		if _, err := e.Search(ctx, req); err == nil {
			warmed++
		}
	}
	e.logger.Info("cache warmup complete",
		zap.Int("queries", len(reqs)), zap.Int("warmed", warmed))
	return warmed
}

// Close shuts the engine down: workers drained, metadata closed, arenas
// released. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.coord.Close()
	err := e.meta.Close()
	e.aff.Close()
	e.logger.Info("engine stopped")
	return err
}
