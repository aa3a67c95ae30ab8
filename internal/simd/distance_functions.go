package simd

import (
	"errors"
	"math"
)

// ErrLengthMismatch is returned when the two input vectors differ in length.
var ErrLengthMismatch = errors.New("simd: vector length mismatch")

// DotProduct calculates the dot product of two vectors.
// Uses pre-selected implementation via function pointer (no switch overhead).
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	return currentDispatch.DotProduct(a, b), nil
}

// L2Squared calculates the squared Euclidean distance between two vectors.
func L2Squared(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	return currentDispatch.L2Squared(a, b), nil
}

// CosineSimilarity calculates dot(a,b)/(|a|*|b|).
// A zero-magnitude input is a defined condition: the similarity is reported
// as the sentinel 0 rather than NaN, and no error is returned.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	dot, na, nb := currentDispatch.CosineTerms(a, b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb)))), nil
}

// CosineDistance calculates the cosine distance (1 - similarity).
func CosineDistance(a, b []float32) (float32, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Norm returns the L2 norm of a vector.
func Norm(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	_, na, _ := currentDispatch.CosineTerms(a, a)
	return float32(math.Sqrt(float64(na)))
}
