package affinity

import (
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/metrics"
)

// Config controls locality-domain placement.
type Config struct {
	// Enabled turns on domain-aware placement. When false the manager
	// still works but routes everything through the default domain.
	Enabled bool
	// PreferredDomains, when non-empty, restricts placement to these
	// domain IDs. Hints outside the set degrade to the default domain.
	PreferredDomains []int
}

// WorkerAssignment says how many workers to start on one domain.
type WorkerAssignment struct {
	Domain  int
	Workers int
}

// Allocation is a handle to arena-backed memory tied to a domain.
type Allocation struct {
	Buf    []byte
	Domain int
	arena  *Arena
}

// Manager owns one arena per locality domain and plans worker placement.
// It never fails a request: an unhonorable hint is logged and served from
// the default domain instead.
type Manager struct {
	cfg    Config
	topo   *Topology
	logger *zap.Logger

	arenas       map[int]*Arena
	defaultArena *Arena
}

// NewManager discovers the topology and builds per-domain arenas.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	topo := Discover()

	m := &Manager{
		cfg:    cfg,
		topo:   topo,
		logger: logger,
		arenas: make(map[int]*Arena),
	}
	for _, d := range topo.Domains() {
		m.arenas[d.ID] = NewArena(d.ID)
	}
	m.defaultArena = m.arenas[topo.Domains()[0].ID]

	logger.Info("locality topology discovered",
		zap.Int("domains", topo.NumDomains()),
		zap.Int("cpus", topo.NumCPUs()),
		zap.Bool("placement_enabled", cfg.Enabled))
	return m
}

// Topology returns the discovered locality topology.
func (m *Manager) Topology() *Topology { return m.topo }

// WorkerPlan splits totalWorkers across domains proportionally to each
// domain's CPU count. With placement disabled or a single domain, all
// workers land on the default domain.
func (m *Manager) WorkerPlan(totalWorkers int) []WorkerAssignment {
	if totalWorkers < 1 {
		totalWorkers = 1
	}
	domains := m.placementDomains()
	if !m.cfg.Enabled || len(domains) <= 1 {
		return []WorkerAssignment{{Domain: m.defaultArena.Domain(), Workers: totalWorkers}}
	}

	totalCPUs := 0
	for _, d := range domains {
		totalCPUs += len(d.CPUs)
	}

	plan := make([]WorkerAssignment, 0, len(domains))
	assigned := 0
	for _, d := range domains {
		n := totalWorkers * len(d.CPUs) / totalCPUs
		plan = append(plan, WorkerAssignment{Domain: d.ID, Workers: n})
		assigned += n
	}
	// Distribute the rounding remainder, largest domains first.
	for i := 0; assigned < totalWorkers; i++ {
		plan[i%len(plan)].Workers++
		assigned++
	}
	return plan
}

// PinWorker restricts the calling goroutine to the domain's CPUs. Failures
// are absorbed: the worker keeps running without placement.
func (m *Manager) PinWorker(domain int) {
	if !m.cfg.Enabled {
		return
	}
	var cpus []int
	for _, d := range m.topo.Domains() {
		if d.ID == domain {
			cpus = d.CPUs
			break
		}
	}
	if len(cpus) == 0 {
		m.logger.Debug("pin skipped, unknown domain", zap.Int("domain", domain))
		return
	}
	if err := pinToCPUs(cpus); err != nil {
		m.logger.Debug("pin failed, running unpinned",
			zap.Int("domain", domain), zap.Error(err))
	}
}

// Allocate carves size bytes from the hinted domain's arena. A hint that
// cannot be honored degrades to the default domain.
func (m *Manager) Allocate(size, domainHint int) *Allocation {
	arena, honored := m.arenaFor(domainHint)
	if honored {
		metrics.AffinityAllocationsTotal.WithLabelValues("hinted").Inc()
	} else {
		metrics.AffinityAllocationsTotal.WithLabelValues("degraded").Inc()
	}
	return &Allocation{
		Buf:    arena.Allocate(size),
		Domain: arena.Domain(),
		arena:  arena,
	}
}

// Release returns an allocation's bytes to its arena's accounting.
func (m *Manager) Release(alloc *Allocation) {
	if alloc == nil || alloc.arena == nil {
		return
	}
	alloc.arena.Free(alloc.Buf)
	alloc.Buf = nil
	alloc.arena = nil
}

// Allocator exposes the hinted domain's arena as an arrow allocator, for
// callers that manage page lifetimes themselves.
func (m *Manager) Allocator(domainHint int) arrowmem.Allocator {
	arena, _ := m.arenaFor(domainHint)
	return arena
}

// Close releases every arena's pooled chunks.
func (m *Manager) Close() {
	for _, a := range m.arenas {
		a.Release()
	}
}

func (m *Manager) arenaFor(domainHint int) (*Arena, bool) {
	if !m.cfg.Enabled {
		return m.defaultArena, domainHint == m.defaultArena.Domain()
	}
	if !m.hintAllowed(domainHint) {
		return m.defaultArena, false
	}
	if a, ok := m.arenas[domainHint]; ok {
		return a, true
	}
	return m.defaultArena, false
}

func (m *Manager) hintAllowed(domain int) bool {
	if len(m.cfg.PreferredDomains) == 0 {
		return true
	}
	for _, id := range m.cfg.PreferredDomains {
		if id == domain {
			return true
		}
	}
	return false
}

func (m *Manager) placementDomains() []Domain {
	if len(m.cfg.PreferredDomains) == 0 {
		return m.topo.Domains()
	}
	var out []Domain
	for _, d := range m.topo.Domains() {
		if m.hintAllowed(d.ID) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return m.topo.Domains()
	}
	return out
}
