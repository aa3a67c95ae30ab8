package index

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/siri1404/NeuroRAG/internal/core"
	"github.com/siri1404/NeuroRAG/internal/metrics"
	"github.com/siri1404/NeuroRAG/internal/simd"
)

// flatIndex is the exact backend: vectors live in fixed-size, contiguous
// row-major pages so the candidate scan runs the batch kernels over sequential
// memory. Mutations take the write lock; searches share the read lock and see
// a consistent snapshot of one generation.
type flatIndex struct {
	cfg Config

	mu       sync.RWMutex
	pages    [][]float32 // page i holds rows [i*PageRows, (i+1)*PageRows)
	pageBufs [][]byte
	ids      []int64
	meta     []map[string]string
	dead     []bool
	byID     map[int64]int
	live     int

	generation atomic.Uint64
}

func newFlat(cfg Config) *flatIndex {
	f := &flatIndex{
		cfg:  cfg,
		byID: make(map[int64]int),
	}
	f.generation.Store(1)
	return f
}

func (f *flatIndex) Dimension() int              { return f.cfg.Dimension }
func (f *flatIndex) Metric() core.DistanceMetric { return f.cfg.Metric }
func (f *flatIndex) Generation() uint64          { return f.generation.Load() }

func (f *flatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live
}

func (f *flatIndex) advanceGeneration() {
	gen := f.generation.Add(1)
	metrics.IndexGeneration.Set(float64(gen))
}

func (f *flatIndex) Insert(entries []core.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Values) != f.cfg.Dimension {
			return core.NewInvalidArgumentError("vectors",
				fmt.Sprintf("dimension mismatch for id %d: got %d, index is %d", e.ID, len(e.Values), f.cfg.Dimension))
		}
		if _, dup := seen[e.ID]; dup {
			return core.NewInvalidArgumentError("vectors", fmt.Sprintf("duplicate id %d in batch", e.ID))
		}
		if _, exists := f.byID[e.ID]; exists {
			return core.NewInvalidArgumentError("vectors", fmt.Sprintf("id %d already present", e.ID))
		}
		seen[e.ID] = struct{}{}
	}

	for _, e := range entries {
		row := len(f.ids)
		f.rowSlot(row)
		copy(f.rowVector(row), e.Values)
		f.ids = append(f.ids, e.ID)
		f.meta = append(f.meta, cloneMeta(e.Metadata))
		f.dead = append(f.dead, false)
		f.byID[e.ID] = row
		f.live++
	}

	metrics.VectorIndexSize.Set(float64(f.live))
	if f.cfg.InvalidateOnInsert {
		f.advanceGeneration()
	}
	return nil
}

func (f *flatIndex) Remove(ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for _, id := range ids {
		row, ok := f.byID[id]
		if !ok {
			continue
		}
		f.dead[row] = true
		delete(f.byID, id)
		f.live--
		removed++
	}

	if removed > 0 {
		metrics.VectorIndexSize.Set(float64(f.live))
		f.advanceGeneration()
	}
	return removed, nil
}

func (f *flatIndex) Search(query []float32, k int, threshold float32, filters map[string]string) ([]Candidate, error) {
	if err := validateQuery(query, f.cfg.Dimension, k); err != nil {
		return nil, err
	}
	if k == 0 {
		return []Candidate{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.live == 0 {
		return nil, core.NewUnavailableError("search", "index is empty")
	}

	dim := f.cfg.Dimension
	heap := newTopKHeap(k)
	scores := make([]float32, f.cfg.PageRows)

	for pageIdx, page := range f.pages {
		base := pageIdx * f.cfg.PageRows
		rows := len(f.ids) - base
		if rows > f.cfg.PageRows {
			rows = f.cfg.PageRows
		}
		if rows <= 0 {
			break
		}

		flat := page[:rows*dim]
		out := scores[:rows]
		var err error
		if f.cfg.Metric == core.MetricCosine {
			err = simd.CosineSimilarityBatchFlat(query, flat, out)
		} else {
			err = simd.L2SquaredBatchFlat(query, flat, out)
		}
		if err != nil {
			return nil, err
		}

		for r := 0; r < rows; r++ {
			row := base + r
			if f.dead[row] {
				continue
			}
			if !matchesFilters(f.meta[row], filters) {
				continue
			}
			score := out[r]
			if f.cfg.Metric == core.MetricL2 {
				score = -score
			}
			if score < threshold {
				continue
			}
			heap.Offer(Candidate{ID: f.ids[row], Score: score, Meta: f.meta[row]})
		}
	}

	return heap.Drain(), nil
}

func (f *flatIndex) Entries() []core.VectorEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]core.VectorEntry, 0, f.live)
	for row, id := range f.ids {
		if f.dead[row] {
			continue
		}
		vec := make([]float32, f.cfg.Dimension)
		copy(vec, f.rowVector(row))
		out = append(out, core.VectorEntry{ID: id, Values: vec, Metadata: cloneMeta(f.meta[row])})
	}
	return out
}

func (f *flatIndex) Compact() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	oldPages := f.pages
	oldBufs := f.pageBufs
	oldIDs := f.ids
	oldMeta := f.meta
	oldDead := f.dead

	f.pages = nil
	f.pageBufs = nil
	f.ids = nil
	f.meta = nil
	f.dead = nil
	f.byID = make(map[int64]int)
	f.live = 0

	dim := f.cfg.Dimension
	for row, id := range oldIDs {
		if oldDead[row] {
			continue
		}
		page := oldPages[row/f.cfg.PageRows]
		start := (row % f.cfg.PageRows) * dim

		newRow := len(f.ids)
		f.rowSlot(newRow)
		copy(f.rowVector(newRow), page[start:start+dim])
		f.ids = append(f.ids, id)
		f.meta = append(f.meta, oldMeta[row])
		f.dead = append(f.dead, false)
		f.byID[id] = newRow
		f.live++
	}

	for _, buf := range oldBufs {
		f.cfg.Allocator.Free(buf)
	}

	metrics.VectorIndexSize.Set(float64(f.live))
	metrics.CompactionsTotal.Inc()
	f.advanceGeneration()
	return nil
}

func (f *flatIndex) MemoryBytes() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int64(len(f.pages)) * int64(f.cfg.PageRows) * int64(f.cfg.Dimension) * 4
}

// rowSlot ensures backing storage exists for the given row, growing by one
// allocator page at a time.
func (f *flatIndex) rowSlot(row int) {
	pageIdx := row / f.cfg.PageRows
	for pageIdx >= len(f.pages) {
		n := f.cfg.PageRows * f.cfg.Dimension
		buf := f.cfg.Allocator.Allocate(n * 4)
		floats := unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), n)
		f.pages = append(f.pages, floats)
		f.pageBufs = append(f.pageBufs, buf)
	}
}

func (f *flatIndex) rowVector(row int) []float32 {
	page := f.pages[row/f.cfg.PageRows]
	start := (row % f.cfg.PageRows) * f.cfg.Dimension
	return page[start : start+f.cfg.Dimension]
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
