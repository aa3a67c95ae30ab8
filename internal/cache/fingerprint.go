package cache

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"
)

// Fingerprint computes the 64-bit cache key for a query. It covers every
// input that affects the result: the (quantized) query vector, k, the score
// threshold and the filter set.
//
// bucketWidth > 0 snaps each vector component to the nearest multiple of the
// width before hashing, so near-duplicate queries land in the same bucket and
// silently share a cached result. Width 0 disables quantization; only
// bit-identical queries collide.
func Fingerprint(query []float32, k int, threshold float32, filters map[string]string, bucketWidth float32) uint64 {
	h := fnv.New64a()

	var buf [8]byte
	for _, v := range query {
		if bucketWidth > 0 {
			v = quantize(v, bucketWidth)
		}
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
		_, _ = h.Write(buf[:4])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(int64(k)))
	_, _ = h.Write(buf[:])

	binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(threshold))
	_, _ = h.Write(buf[:4])

	if len(filters) > 0 {
		// Map iteration order is random; hash filter pairs in sorted key order
		// so equal filter sets always produce equal fingerprints.
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			_, _ = h.Write([]byte(key))
			_, _ = h.Write([]byte{0})
			_, _ = h.Write([]byte(filters[key]))
			_, _ = h.Write([]byte{0})
		}
	}

	return h.Sum64()
}

// quantize snaps v to the nearest multiple of width. The result is
// re-materialized as float32 so the same bucket always hashes identically.
func quantize(v, width float32) float32 {
	return float32(math.Round(float64(v/width))) * width
}
