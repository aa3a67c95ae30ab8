package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	q := []float32{0.1, 0.2, 0.3}
	filters := map[string]string{"lang": "en", "source": "wiki", "tier": "hot"}

	a := Fingerprint(q, 10, 0.5, filters, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a, Fingerprint(q, 10, 0.5, filters, 0),
			"fingerprint must not depend on map iteration order")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	q := []float32{0.1, 0.2, 0.3}
	base := Fingerprint(q, 10, 0.5, nil, 0)

	assert.NotEqual(t, base, Fingerprint([]float32{0.1, 0.2, 0.31}, 10, 0.5, nil, 0))
	assert.NotEqual(t, base, Fingerprint(q, 11, 0.5, nil, 0))
	assert.NotEqual(t, base, Fingerprint(q, 10, 0.6, nil, 0))
	assert.NotEqual(t, base, Fingerprint(q, 10, 0.5, map[string]string{"lang": "en"}, 0))
}

func TestFingerprintQuantization(t *testing.T) {
	a := []float32{0.1001, 0.2002}
	b := []float32{0.1004, 0.1998}

	// Exact mode: near-identical queries hash differently.
	assert.NotEqual(t, Fingerprint(a, 5, 0, nil, 0), Fingerprint(b, 5, 0, nil, 0))

	// Bucketed mode: both round onto the same grid points.
	assert.Equal(t, Fingerprint(a, 5, 0, nil, 0.01), Fingerprint(b, 5, 0, nil, 0.01))

	// But queries in different buckets stay distinct.
	c := []float32{0.11, 0.2002}
	assert.NotEqual(t, Fingerprint(a, 5, 0, nil, 0.01), Fingerprint(c, 5, 0, nil, 0.01))
}

func TestFingerprintFilterOrder(t *testing.T) {
	q := []float32{1, 2}
	f1 := map[string]string{"a": "1", "b": "2", "c": "3"}
	f2 := map[string]string{"c": "3", "a": "1", "b": "2"}
	assert.Equal(t, Fingerprint(q, 3, 0, f1, 0), Fingerprint(q, 3, 0, f2, 0))
}
