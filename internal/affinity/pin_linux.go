//go:build linux

package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPUs locks the calling goroutine to its OS thread and restricts the
// thread to the given CPU set.
func pinToCPUs(cpus []int) error {
	if len(cpus) == 0 {
		return fmt.Errorf("empty CPU set")
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}
