package simd

// =============================================================================
// Unrolled Kernels (8x, independent accumulators)
// =============================================================================

func dotUnrolled8(a, b []float32) float32 {
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	n := len(a)
	i := 0
	for ; i <= n-8; i += 8 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
}

func l2SquaredUnrolled8(a, b []float32) float32 {
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	n := len(a)
	i := 0
	for ; i <= n-8; i += 8 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		d4 := a[i+4] - b[i+4]
		d5 := a[i+5] - b[i+5]
		d6 := a[i+6] - b[i+6]
		d7 := a[i+7] - b[i+7]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
		s4 += d4 * d4
		s5 += d5 * d5
		s6 += d6 * d6
		s7 += d7 * d7
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
}

func cosineTermsUnrolled8(a, b []float32) (float32, float32, float32) {
	var dot0, dot1, dot2, dot3 float32
	var na0, na1, na2, na3 float32
	var nb0, nb1, nb2, nb3 float32
	n := len(a)
	i := 0
	for ; i <= n-8; i += 8 {
		dot0 += a[i]*b[i] + a[i+4]*b[i+4]
		dot1 += a[i+1]*b[i+1] + a[i+5]*b[i+5]
		dot2 += a[i+2]*b[i+2] + a[i+6]*b[i+6]
		dot3 += a[i+3]*b[i+3] + a[i+7]*b[i+7]
		na0 += a[i]*a[i] + a[i+4]*a[i+4]
		na1 += a[i+1]*a[i+1] + a[i+5]*a[i+5]
		na2 += a[i+2]*a[i+2] + a[i+6]*a[i+6]
		na3 += a[i+3]*a[i+3] + a[i+7]*a[i+7]
		nb0 += b[i]*b[i] + b[i+4]*b[i+4]
		nb1 += b[i+1]*b[i+1] + b[i+5]*b[i+5]
		nb2 += b[i+2]*b[i+2] + b[i+6]*b[i+6]
		nb3 += b[i+3]*b[i+3] + b[i+7]*b[i+7]
	}
	for ; i < n; i++ {
		dot0 += a[i] * b[i]
		na0 += a[i] * a[i]
		nb0 += b[i] * b[i]
	}
	return dot0 + dot1 + dot2 + dot3, na0 + na1 + na2 + na3, nb0 + nb1 + nb2 + nb3
}

// =============================================================================
// Generic Baseline Kernels
// =============================================================================

func dotGeneric(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func l2SquaredGeneric(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cosineTermsGeneric(a, b []float32) (float32, float32, float32) {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot, na, nb
}
