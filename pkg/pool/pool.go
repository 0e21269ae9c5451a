// Package pool provides typed object pooling for stratum kernels.
// It reduces garbage collection pressure for scratch memory that is
// needed per worker rather than per column: regex working buffers,
// gather maps and byte scratch.
//
// The package provides:
//   - Generic type-safe object pooling with Pool[T]
//   - Pre-configured global pools for byte and index slices
//   - Statistics for monitoring
//
// Example usage:
//
//	scratch := pool.New(
//	    func() *Workspace { return &Workspace{} },
//	    func(w *Workspace) { w.Reset() },
//	)
//	ws := scratch.Get()
//	defer scratch.Put(ws)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset
// function. The pool is safe for concurrent use.
//
// Pointer types are recommended for T.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The reset function is called before an object is returned to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Discard marks obj as no longer checked out without pooling it.
func (p *Pool[T]) Discard(T) {
	atomic.AddInt64(&p.stats.inUse, -1)
}

// Stats returns current pool statistics.
//
// Returns:
//   - allocated: Total number of objects created by the pool
//   - inUse: Number of objects currently checked out from the pool
//   - hits: Number of Get calls served by a recycled object
//   - misses: Number of Get calls that had to create a new object
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	allocated = atomic.LoadInt64(&p.stats.allocated)
	gets := atomic.LoadInt64(&p.stats.gets)
	misses = allocated
	if misses > gets {
		misses = gets
	}
	return allocated, atomic.LoadInt64(&p.stats.inUse), gets - misses, misses
}

const (
	byteSliceCapacity  = 1024
	indexSliceCapacity = 4096
	maxPooledCapacity  = 1 << 20
)

var (
	// ByteSlicePool holds byte scratch used while expanding strings.
	ByteSlicePool = New(
		func() *[]byte {
			b := make([]byte, 0, byteSliceCapacity)
			return &b
		},
		func(b *[]byte) { *b = (*b)[:0] },
	)

	// IndexSlicePool holds row index scratch used by gather maps.
	IndexSlicePool = New(
		func() *[]int32 {
			s := make([]int32, 0, indexSliceCapacity)
			return &s
		},
		func(s *[]int32) { *s = (*s)[:0] },
	)
)

// GetByteSlice retrieves a zero-length byte slice from the global pool.
func GetByteSlice() *[]byte {
	return ByteSlicePool.Get()
}

// PutByteSlice returns a byte slice to the global pool. Oversized slices
// are dropped so one long string does not pin memory forever.
func PutByteSlice(b *[]byte) {
	if b == nil {
		return
	}
	if cap(*b) > maxPooledCapacity {
		ByteSlicePool.Discard(b)
		return
	}
	ByteSlicePool.Put(b)
}

// GetIndexSlice retrieves a zero-length index slice with at least the
// requested capacity.
func GetIndexSlice(capacity int) *[]int32 {
	s := IndexSlicePool.Get()
	if cap(*s) < capacity {
		*s = make([]int32, 0, capacity)
	}
	return s
}

// PutIndexSlice returns an index slice to the global pool.
func PutIndexSlice(s *[]int32) {
	if s == nil {
		return
	}
	if cap(*s) > maxPooledCapacity {
		IndexSlicePool.Discard(s)
		return
	}
	IndexSlicePool.Put(s)
}
