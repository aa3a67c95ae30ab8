//go:build !linux

package affinity

// pinToCPUs is a no-op on platforms without thread-affinity syscalls.
// Workers still run correctly, just without locality placement.
func pinToCPUs(cpus []int) error {
	return nil
}
