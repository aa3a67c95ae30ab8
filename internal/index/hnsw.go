package index

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/hnsw"

	"github.com/siri1404/NeuroRAG/internal/core"
	"github.com/siri1404/NeuroRAG/internal/metrics"
	"github.com/siri1404/NeuroRAG/internal/simd"
)

// hnswIndex is the approximate backend built on coder/hnsw. The graph ranks
// by distance; scores are recomputed from the stored vectors so both backends
// report identical score semantics.
//
// Removals are tombstones only: the graph keeps the node, searches oversample
// and filter, and Compact rebuilds the graph from the live set.
type hnswIndex struct {
	cfg Config

	mu      sync.RWMutex
	graph   *hnsw.Graph[int64]
	vectors map[int64][]float32
	meta    map[int64]map[string]string
	dead    map[int64]struct{}

	generation atomic.Uint64
}

func newHNSW(cfg Config) *hnswIndex {
	h := &hnswIndex{
		cfg:     cfg,
		graph:   newGraph(cfg),
		vectors: make(map[int64][]float32),
		meta:    make(map[int64]map[string]string),
		dead:    make(map[int64]struct{}),
	}
	h.generation.Store(1)
	return h
}

func newGraph(cfg Config) *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.Distance = graphDistFunc(cfg.Metric)
	g.M = cfg.HNSW.M
	g.EfSearch = cfg.HNSW.EfSearch
	return g
}

// graphDistFunc maps the index metric onto the graph's lower-is-closer
// distance contract.
func graphDistFunc(m core.DistanceMetric) func(a, b []float32) float32 {
	switch m {
	case core.MetricCosine:
		return func(a, b []float32) float32 {
			d, _ := simd.CosineDistance(a, b)
			return d
		}
	default:
		return func(a, b []float32) float32 {
			d, _ := simd.L2Squared(a, b)
			return d
		}
	}
}

func (h *hnswIndex) Dimension() int              { return h.cfg.Dimension }
func (h *hnswIndex) Metric() core.DistanceMetric { return h.cfg.Metric }
func (h *hnswIndex) Generation() uint64          { return h.generation.Load() }

func (h *hnswIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors) - len(h.dead)
}

func (h *hnswIndex) advanceGeneration() {
	gen := h.generation.Add(1)
	metrics.IndexGeneration.Set(float64(gen))
}

func (h *hnswIndex) Insert(entries []core.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Values) != h.cfg.Dimension {
			return core.NewInvalidArgumentError("vectors",
				fmt.Sprintf("dimension mismatch for id %d: got %d, index is %d", e.ID, len(e.Values), h.cfg.Dimension))
		}
		if _, dup := seen[e.ID]; dup {
			return core.NewInvalidArgumentError("vectors", fmt.Sprintf("duplicate id %d in batch", e.ID))
		}
		if _, exists := h.vectors[e.ID]; exists {
			if _, tombstoned := h.dead[e.ID]; !tombstoned {
				return core.NewInvalidArgumentError("vectors", fmt.Sprintf("id %d already present", e.ID))
			}
		}
		seen[e.ID] = struct{}{}
	}

	for _, e := range entries {
		vec := make([]float32, h.cfg.Dimension)
		copy(vec, e.Values)
		// A tombstoned id passed validation above; its stale node must leave
		// the graph before the key can be added again.
		if _, exists := h.vectors[e.ID]; exists {
			h.graph.Delete(e.ID)
		}
		h.vectors[e.ID] = vec
		h.meta[e.ID] = cloneMeta(e.Metadata)
		delete(h.dead, e.ID)
		h.graph.Add(hnsw.MakeNode(e.ID, vec))
	}

	metrics.VectorIndexSize.Set(float64(len(h.vectors) - len(h.dead)))
	if h.cfg.InvalidateOnInsert {
		h.advanceGeneration()
	}
	return nil
}

func (h *hnswIndex) Remove(ids []int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := h.vectors[id]; !ok {
			continue
		}
		if _, gone := h.dead[id]; gone {
			continue
		}
		h.dead[id] = struct{}{}
		removed++
	}

	if removed > 0 {
		metrics.VectorIndexSize.Set(float64(len(h.vectors) - len(h.dead)))
		h.advanceGeneration()
	}
	return removed, nil
}

func (h *hnswIndex) Search(query []float32, k int, threshold float32, filters map[string]string) ([]Candidate, error) {
	if err := validateQuery(query, h.cfg.Dimension, k); err != nil {
		return nil, err
	}
	if k == 0 {
		return []Candidate{}, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	live := len(h.vectors) - len(h.dead)
	if live == 0 {
		return nil, core.NewUnavailableError("search", "index is empty")
	}

	// Oversample past tombstones and filters; EfSearch bounds the floor of
	// the candidate list width.
	fetch := k + len(h.dead)
	if fetch < h.cfg.HNSW.EfSearch {
		fetch = h.cfg.HNSW.EfSearch
	}
	if fetch > len(h.vectors) {
		fetch = len(h.vectors)
	}

	nodes := h.graph.Search(query, fetch)

	heap := newTopKHeap(k)
	for _, n := range nodes {
		if _, gone := h.dead[n.Key]; gone {
			continue
		}
		meta := h.meta[n.Key]
		if !matchesFilters(meta, filters) {
			continue
		}
		score, err := scoreOf(h.cfg.Metric, query, h.vectors[n.Key])
		if err != nil {
			return nil, err
		}
		if score < threshold {
			continue
		}
		heap.Offer(Candidate{ID: n.Key, Score: score, Meta: meta})
	}

	return heap.Drain(), nil
}

func scoreOf(metric core.DistanceMetric, query, vec []float32) (float32, error) {
	if metric == core.MetricCosine {
		return simd.CosineSimilarity(query, vec)
	}
	d, err := simd.L2Squared(query, vec)
	return -d, err
}

func (h *hnswIndex) Entries() []core.VectorEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]core.VectorEntry, 0, len(h.vectors)-len(h.dead))
	for id, vec := range h.vectors {
		if _, gone := h.dead[id]; gone {
			continue
		}
		cp := make([]float32, len(vec))
		copy(cp, vec)
		out = append(out, core.VectorEntry{ID: id, Values: cp, Metadata: cloneMeta(h.meta[id])})
	}
	return out
}

// Compact rebuilds the graph without tombstoned nodes.
func (h *hnswIndex) Compact() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	graph := newGraph(h.cfg)

	vectors := make(map[int64][]float32, len(h.vectors)-len(h.dead))
	meta := make(map[int64]map[string]string, len(vectors))
	for id, vec := range h.vectors {
		if _, gone := h.dead[id]; gone {
			continue
		}
		vectors[id] = vec
		meta[id] = h.meta[id]
		graph.Add(hnsw.MakeNode(id, vec))
	}

	h.graph = graph
	h.vectors = vectors
	h.meta = meta
	h.dead = make(map[int64]struct{})

	metrics.VectorIndexSize.Set(float64(len(h.vectors)))
	metrics.CompactionsTotal.Inc()
	h.advanceGeneration()
	return nil
}

func (h *hnswIndex) MemoryBytes() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	// Vector payload only; the graph adjacency overhead is not accounted.
	return int64(len(h.vectors)) * int64(h.cfg.Dimension) * 4
}
