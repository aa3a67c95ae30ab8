package simd

import (
	"github.com/klauspost/cpuid/v2"
)

// CPUFeatures contains detected CPU SIMD capabilities
type CPUFeatures struct {
	Vendor    string
	HasAVX2   bool
	HasAVX512 bool
	HasNEON   bool
}

// Global CPU detection state, written once during init.
var (
	features       CPUFeatures
	implementation string
)

// detectCPU detects CPU capabilities and selects the kernel implementation.
// Wide-vector capable CPUs get the 8x-unrolled kernels, which the compiler
// can keep in registers; everything else gets the plain loops.
func detectCPU() {
	hasAVX512 := cpuid.CPU.Supports(cpuid.AVX512F) &&
		cpuid.CPU.Supports(cpuid.AVX512DQ) &&
		cpuid.CPU.Supports(cpuid.AVX512BW) &&
		cpuid.CPU.Supports(cpuid.AVX512VL)

	features = CPUFeatures{
		Vendor:    cpuid.CPU.VendorString,
		HasAVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		HasAVX512: hasAVX512,
		HasNEON:   cpuid.CPU.Supports(cpuid.ASIMD),
	}

	switch {
	case features.HasAVX512, features.HasAVX2, features.HasNEON:
		implementation = "unrolled8"
	default:
		implementation = "generic"
	}
}

// GetCPUFeatures returns the detected CPU capabilities
func GetCPUFeatures() CPUFeatures {
	return features
}

// GetImplementation returns the selected kernel implementation name
func GetImplementation() string {
	return implementation
}

func init() {
	detectCPU()
	initializeDispatch()
}
