package simd

type distanceFunc func(a, b []float32) float32

// cosineTermsFunc returns the dot product and both squared norms in one pass.
type cosineTermsFunc func(a, b []float32) (dot, na, nb float32)

// ImplementationDispatch holds the kernel function pointers for one
// implementation. Selection happens once at init; the hot path is a single
// pointer load with no switch.
type ImplementationDispatch struct {
	DotProduct  distanceFunc
	L2Squared   distanceFunc
	CosineTerms cosineTermsFunc
}

var dispatchTable = map[string]ImplementationDispatch{
	"unrolled8": {
		DotProduct:  dotUnrolled8,
		L2Squared:   l2SquaredUnrolled8,
		CosineTerms: cosineTermsUnrolled8,
	},
	"generic": {
		DotProduct:  dotGeneric,
		L2Squared:   l2SquaredGeneric,
		CosineTerms: cosineTermsGeneric,
	},
}

var currentDispatch *ImplementationDispatch

// initializeDispatch sets function pointers based on detected CPU features.
func initializeDispatch() {
	d, ok := dispatchTable[implementation]
	if !ok {
		d = dispatchTable["generic"]
	}
	currentDispatch = &d
}
