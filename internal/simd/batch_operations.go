package simd

import (
	"errors"
	"math"
)

// =============================================================================
// Batch Operations
// =============================================================================

// ErrBatchShape is returned when vectors and results lengths disagree.
var ErrBatchShape = errors.New("simd: vectors and results length mismatch")

// L2SquaredBatch computes squared Euclidean distances between one query and
// multiple vectors. A row of mismatched dimension yields MaxFloat32 so the
// caller's candidate loop does not need per-row error handling.
func L2SquaredBatch(query []float32, vectors [][]float32, results []float32) error {
	if len(vectors) != len(results) {
		return ErrBatchShape
	}
	f := currentDispatch.L2Squared
	for i, v := range vectors {
		if len(v) != len(query) {
			results[i] = math.MaxFloat32
			continue
		}
		results[i] = f(query, v)
	}
	return nil
}

// CosineSimilarityBatch computes cosine similarities between one query and
// multiple vectors. Zero-magnitude rows yield the 0 sentinel.
func CosineSimilarityBatch(query []float32, vectors [][]float32, results []float32) error {
	if len(vectors) != len(results) {
		return ErrBatchShape
	}
	f := currentDispatch.CosineTerms
	for i, v := range vectors {
		if len(v) != len(query) {
			results[i] = 0
			continue
		}
		dot, na, nb := f(query, v)
		if na == 0 || nb == 0 {
			results[i] = 0
			continue
		}
		results[i] = dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb))))
	}
	return nil
}

// L2SquaredBatchFlat computes squared Euclidean distances against rows packed
// contiguously in flat (row-major, dim-strided). Iterating a single buffer
// keeps the candidate scan sequential for the hardware prefetcher.
func L2SquaredBatchFlat(query []float32, flat []float32, results []float32) error {
	dim := len(query)
	if dim == 0 {
		return nil
	}
	if len(flat) != dim*len(results) {
		return ErrBatchShape
	}
	f := currentDispatch.L2Squared
	for i := range results {
		results[i] = f(query, flat[i*dim:(i+1)*dim])
	}
	return nil
}

// CosineSimilarityBatchFlat computes cosine similarities against rows packed
// contiguously in flat (row-major, dim-strided).
func CosineSimilarityBatchFlat(query []float32, flat []float32, results []float32) error {
	dim := len(query)
	if dim == 0 {
		return nil
	}
	if len(flat) != dim*len(results) {
		return ErrBatchShape
	}
	f := currentDispatch.CosineTerms
	for i := range results {
		dot, na, nb := f(query, flat[i*dim:(i+1)*dim])
		if na == 0 || nb == 0 {
			results[i] = 0
			continue
		}
		results[i] = dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb))))
	}
	return nil
}
