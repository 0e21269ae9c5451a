package stream

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stratum/pkg/metrics"
)

// trackingAllocator counts the bytes held through it and feeds the
// allocation metrics.
type trackingAllocator struct {
	mem   memory.Allocator
	inUse atomic.Int64
}

func newTrackingAllocator(mem memory.Allocator) *trackingAllocator {
	return &trackingAllocator{mem: mem}
}

func (t *trackingAllocator) Allocate(size int) []byte {
	t.add(size)
	return t.mem.Allocate(size)
}

func (t *trackingAllocator) Reallocate(size int, b []byte) []byte {
	t.add(size - len(b))
	return t.mem.Reallocate(size, b)
}

func (t *trackingAllocator) Free(b []byte) {
	t.add(-len(b))
	t.mem.Free(b)
}

func (t *trackingAllocator) InUse() int64 {
	return t.inUse.Load()
}

func (t *trackingAllocator) add(n int) {
	if n == 0 {
		return
	}
	t.inUse.Add(int64(n))
	metrics.RecordAllocation(n)
}
