package core

import "fmt"

// DistanceMetric selects the similarity measure used by an index.
// It is fixed at index-build time, never per-query.
type DistanceMetric string

const (
	// MetricL2 ranks by squared Euclidean distance (lower is closer).
	MetricL2 DistanceMetric = "l2"
	// MetricCosine ranks by cosine similarity (higher is closer).
	MetricCosine DistanceMetric = "cosine"
)

// ParseMetric converts a configuration string into a DistanceMetric.
func ParseMetric(s string) (DistanceMetric, error) {
	switch DistanceMetric(s) {
	case MetricL2, MetricCosine:
		return DistanceMetric(s), nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q (want %q or %q)", s, MetricL2, MetricCosine)
	}
}
