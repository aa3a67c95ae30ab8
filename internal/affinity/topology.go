// Package affinity places worker goroutines and large index allocations on
// specific memory-locality domains. It is an optimization layer: every entry
// point degrades to default behavior when the platform has no locality
// domains or a hint cannot be honored.
package affinity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const sysfsNodePath = "/sys/devices/system/node"

// Domain is one memory-locality domain and the CPUs local to it.
type Domain struct {
	ID   int
	CPUs []int
}

// Topology describes the locality domains discovered at startup.
type Topology struct {
	domains []Domain
	cpuToID map[int]int
	numCPUs int
}

// NumDomains returns the number of locality domains.
func (t *Topology) NumDomains() int { return len(t.domains) }

// NumCPUs returns the total number of CPUs across all domains.
func (t *Topology) NumCPUs() int { return t.numCPUs }

// Domains returns the discovered domains in ID order.
func (t *Topology) Domains() []Domain { return t.domains }

// DomainForCPU returns the domain containing the given CPU, or 0.
func (t *Topology) DomainForCPU(cpu int) int {
	if id, ok := t.cpuToID[cpu]; ok {
		return id
	}
	return 0
}

// HasDomain reports whether the topology contains the given domain ID.
func (t *Topology) HasDomain(id int) bool {
	for _, d := range t.domains {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (t *Topology) String() string {
	if len(t.domains) == 1 {
		return fmt.Sprintf("1 locality domain, %d CPUs", t.numCPUs)
	}
	return fmt.Sprintf("%d locality domains, %d CPUs", len(t.domains), t.numCPUs)
}

// Discover reads the locality topology from sysfs. On platforms without
// locality domains it returns a single default domain spanning all logical
// CPUs, never an error the caller has to handle specially.
func Discover() *Topology {
	if topo, err := discoverSysfs(); err == nil {
		return topo
	}
	return singleDomainTopology()
}

func singleDomainTopology() *Topology {
	n := runtime.NumCPU()
	cpus := make([]int, n)
	cpuToID := make(map[int]int, n)
	for i := 0; i < n; i++ {
		cpus[i] = i
		cpuToID[i] = 0
	}
	return &Topology{
		domains: []Domain{{ID: 0, CPUs: cpus}},
		cpuToID: cpuToID,
		numCPUs: n,
	}
}

func discoverSysfs() (*Topology, error) {
	if _, err := os.Stat(sysfsNodePath); err != nil {
		return nil, errors.New("locality sysfs not available")
	}
	entries, err := os.ReadDir(sysfsNodePath)
	if err != nil {
		return nil, fmt.Errorf("read locality sysfs: %w", err)
	}

	topo := &Topology{cpuToID: make(map[int]int)}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "node") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), "node"))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sysfsNodePath, entry.Name(), "cpulist"))
		if err != nil {
			continue
		}
		cpus := parseCPUList(strings.TrimSpace(string(data)))
		if len(cpus) == 0 {
			continue
		}
		topo.domains = append(topo.domains, Domain{ID: id, CPUs: cpus})
		for _, cpu := range cpus {
			topo.cpuToID[cpu] = id
			topo.numCPUs++
		}
	}
	if len(topo.domains) == 0 {
		return nil, errors.New("no locality domains found")
	}
	return topo, nil
}

// parseCPUList parses sysfs cpulist syntax, e.g. "0-3,8,10-11".
func parseCPUList(list string) []int {
	var cpus []int
	if list == "" {
		return cpus
	}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(lo)
			end, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil {
				continue
			}
			for i := start; i <= end; i++ {
				cpus = append(cpus, i)
			}
		} else if cpu, err := strconv.Atoi(part); err == nil {
			cpus = append(cpus, cpu)
		}
	}
	return cpus
}
