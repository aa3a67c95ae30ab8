package affinity

import (
	"sync"
	"sync/atomic"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/siri1404/NeuroRAG/internal/metrics"
)

// ArenaChunkSize is the unit of pooled arena memory.
const ArenaChunkSize = 64 * 1024 * 1024

// Arena implements arrow's memory.Allocator on top of pooled chunks, so
// index pages carved from it recycle through the pool instead of churning
// the garbage collector. One arena serves one locality domain; sub-chunk
// requests bump-allocate from the current chunk.
type Arena struct {
	domain int

	mu        sync.Mutex
	current   []byte
	offset    int
	chunks    []*[]byte
	allocated int64
}

var chunkPool = &sync.Pool{
	New: func() interface{} {
		b := make([]byte, ArenaChunkSize)
		return &b
	},
}

// NewArena creates an arena bound to a locality domain.
func NewArena(domain int) *Arena {
	return &Arena{domain: domain}
}

// Domain returns the locality domain this arena serves.
func (a *Arena) Domain() int { return a.domain }

// Allocate hands out a size-byte slice from pooled chunk memory.
func (a *Arena) Allocate(size int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	atomic.AddInt64(&a.allocated, int64(size))
	metrics.ArenaBytesAllocated.Add(float64(size))

	if size > ArenaChunkSize {
		buf := make([]byte, size)
		a.chunks = append(a.chunks, &buf)
		return buf
	}

	if a.current != nil && a.offset+size <= len(a.current) {
		start := a.offset
		a.offset += size
		return a.current[start:a.offset]
	}

	ptr := chunkPool.Get().(*[]byte)
	a.chunks = append(a.chunks, ptr)
	a.current = *ptr
	a.offset = size
	return a.current[:size]
}

// Reallocate grows or shrinks b to size, copying its prefix.
func (a *Arena) Reallocate(size int, b []byte) []byte {
	if size == len(b) {
		return b
	}
	buf := a.Allocate(size)
	copy(buf, b)
	return buf
}

// Free only adjusts accounting; chunk memory returns to the pool on Release.
func (a *Arena) Free(b []byte) {
	atomic.AddInt64(&a.allocated, -int64(len(b)))
	metrics.ArenaBytesAllocated.Sub(float64(len(b)))
}

// Allocated returns bytes currently handed out and not yet freed.
func (a *Arena) Allocated() int64 {
	return atomic.LoadInt64(&a.allocated)
}

// Release returns every pooled chunk and resets the arena. Callers must not
// touch slices obtained from the arena after Release.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ptr := range a.chunks {
		if cap(*ptr) == ArenaChunkSize {
			chunkPool.Put(ptr)
		}
	}
	a.chunks = nil
	a.current = nil
	a.offset = 0

	remaining := atomic.SwapInt64(&a.allocated, 0)
	metrics.ArenaBytesAllocated.Sub(float64(remaining))
}

var _ arrowmem.Allocator = (*Arena)(nil)
