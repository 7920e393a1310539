package device

import (
	"sync"
	"unsafe"
)

// Arena hands out simulation buffers. Buffers never move once allocated;
// Reset marks every outstanding buffer (and every graph recorded against
// them) as stale by bumping the generation.
type Arena struct {
	mu         sync.Mutex
	pooled     bool
	generation uint64
	bytes      int64
	allocs     int
}

func newArena(pooled bool) *Arena {
	return &Arena{pooled: pooled, generation: 1}
}

// Alloc returns a zeroed slice of n elements accounted against a.
func Alloc[T any](a *Arena, n int) []T {
	buf := make([]T, n)
	if a == nil || n == 0 {
		return buf
	}
	var zero T
	a.mu.Lock()
	a.bytes += int64(n) * int64(unsafe.Sizeof(zero))
	a.allocs++
	a.mu.Unlock()
	return buf
}

func (a *Arena) Pooled() bool { return a.pooled }

func (a *Arena) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

func (a *Arena) Bytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

func (a *Arena) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Reset releases the accounting and invalidates recorded graphs.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.generation++
	a.bytes = 0
	a.allocs = 0
	a.mu.Unlock()
}
