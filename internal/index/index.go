// Package index implements the vector index backends: an exact flat scan and
// an approximate HNSW graph, selected at construction time behind a common
// capability interface.
//
// Scores are similarity-oriented for both metrics so that callers can always
// order descending and filter with ">= threshold": cosine uses the cosine
// similarity directly, L2 uses the negated squared distance (a self-match
// scores 0, everything else negative).
package index

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/siri1404/NeuroRAG/internal/core"
)

// Kind selects the index backend at construction time.
type Kind string

const (
	// KindFlat is the exact linear-scan backend. Always correct; O(n) per query.
	KindFlat Kind = "flat"
	// KindHNSW is the approximate graph backend. Recall is governed by the
	// EfSearch parameter, a documented configuration trade-off.
	KindHNSW Kind = "hnsw"
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFlat, KindHNSW:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown index kind %q (want %q or %q)", s, KindFlat, KindHNSW)
	}
}

// Candidate is one scored search hit.
type Candidate struct {
	ID    int64
	Score float32
	Meta  map[string]string
}

// HNSWParams tunes the graph backend. Both values are applied to the
// underlying graph; construction-time beam width is not separately tunable
// in the graph library.
type HNSWParams struct {
	// M caps the neighbor count kept per graph node.
	M int
	// EfSearch is the candidate-list width used at query time. Larger values
	// raise recall and latency together; this is the backend's explicit
	// recall/latency trade-off knob.
	EfSearch int
}

// Config describes an index instance. Dimension and Metric are fixed for the
// life of the index.
type Config struct {
	Kind      Kind
	Dimension int
	Metric    core.DistanceMetric
	// InvalidateOnInsert controls whether incremental inserts advance the
	// generation counter (and therefore invalidate cached results). Removals
	// always advance it.
	InvalidateOnInsert bool
	// PageRows is the number of vectors per flat-backend storage page.
	PageRows int
	// Allocator provides the backing memory for vector pages. Defaults to the
	// Go allocator; the affinity manager supplies an arena in production.
	Allocator memory.Allocator
	HNSW      HNSWParams
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PageRows <= 0 {
		out.PageRows = 4096
	}
	if out.Allocator == nil {
		out.Allocator = memory.NewGoAllocator()
	}
	if out.HNSW.M <= 0 {
		out.HNSW.M = 16
	}
	if out.HNSW.EfSearch <= 0 {
		out.HNSW.EfSearch = 50
	}
	return out
}

// VectorIndex is the capability interface shared by all backends.
type VectorIndex interface {
	Dimension() int
	Metric() core.DistanceMetric
	// Len reports the number of live (non-tombstoned) vectors.
	Len() int
	// Generation is the monotonic counter advanced on structural mutation,
	// used by the result cache for invalidation.
	Generation() uint64
	// Insert appends entries. The whole batch is validated before any entry
	// is applied: a dimension mismatch or duplicate live id rejects the batch.
	Insert(entries []core.VectorEntry) error
	// Remove tombstones the given ids and reports how many were live. A
	// removed id never appears in results again, even before compaction.
	Remove(ids []int64) (int, error)
	// Search returns at most k candidates scoring >= threshold, ordered by
	// descending score with ties broken by ascending id.
	Search(query []float32, k int, threshold float32, filters map[string]string) ([]Candidate, error)
	// Entries returns a snapshot of all live entries.
	Entries() []core.VectorEntry
	// Compact physically reclaims tombstoned entries and advances the
	// generation.
	Compact() error
	// MemoryBytes estimates the resident size of the vector storage.
	MemoryBytes() int64
}

// New constructs the backend named by cfg.Kind.
func New(cfg Config) (VectorIndex, error) {
	if cfg.Dimension <= 0 {
		return nil, core.NewInvalidArgumentError("dimension", "must be positive")
	}
	if cfg.Metric != core.MetricL2 && cfg.Metric != core.MetricCosine {
		return nil, core.NewInvalidArgumentError("metric", fmt.Sprintf("unknown metric %q", cfg.Metric))
	}
	c := cfg.withDefaults()
	switch c.Kind {
	case KindFlat, "":
		return newFlat(c), nil
	case KindHNSW:
		return newHNSW(c), nil
	default:
		return nil, core.NewInvalidArgumentError("kind", fmt.Sprintf("unknown index kind %q", c.Kind))
	}
}

// matchesFilters applies equality predicates against entry metadata.
// A nil or empty filter set matches everything.
func matchesFilters(meta map[string]string, filters map[string]string) bool {
	if len(filters) == 0 {
		return true
	}
	for k, want := range filters {
		if got, ok := meta[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func validateQuery(query []float32, dim, k int) error {
	if len(query) != dim {
		return core.NewInvalidArgumentError("query_vector",
			fmt.Sprintf("dimension mismatch: got %d, index is %d", len(query), dim))
	}
	if k < 0 {
		return core.NewInvalidArgumentError("k", "must be >= 0")
	}
	return nil
}
