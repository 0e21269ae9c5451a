// Package stream provides the execution queue every stratum kernel is issued
// against.
//
// A Stream splits an index space [0, n) into contiguous ranges whose starts
// are multiples of 64 and runs them on a bounded errgroup. Output buffers are
// allocated through the stream so one invocation can be held to a memory
// limit, and every invocation is timed, traced and logged through Begin.
//
//	s, err := stream.New(cfg.Engine)
//	err = s.Launch(ctx, n, func(r stream.Range) error {
//	    for i := r.Start; i < r.End; i++ {
//	        out[i] = in[i] * 2
//	    }
//	    return nil
//	})
package stream

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/config"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/logger"
)

// Stream is a logical execution queue with its own allocator.
// It is safe for concurrent use by multiple invocations.
type Stream struct {
	mem     *trackingAllocator
	workers int
	grain   int
	limit   int64
	logger  *zap.Logger
}

// Option customizes a Stream
type Option func(*Stream)

// WithAllocator replaces the default Go allocator
func WithAllocator(alloc memory.Allocator) Option {
	return func(s *Stream) { s.mem = newTrackingAllocator(alloc) }
}

// WithLogger replaces the global logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// WithMemoryLimit caps the bytes the stream may hold at once (0 = unlimited)
func WithMemoryLimit(bytes int64) Option {
	return func(s *Stream) { s.limit = bytes }
}

// New creates a stream from the engine configuration.
func New(cfg config.EngineConfig, opts ...Option) (*Stream, error) {
	if cfg.GrainSize <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "grain size must be positive").
			WithDetail("grain_size", cfg.GrainSize)
	}

	s := &Stream{
		mem:     newTrackingAllocator(memory.NewGoAllocator()),
		workers: cfg.GetWorkers(),
		grain:   roundUp(cfg.GrainSize, bitmask.WordBits),
		limit:   int64(cfg.MemoryLimitMB) * 1024 * 1024,
	}

	if cfg.AutoMemoryLimit {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read system memory")
		}
		s.limit = int64(float64(vm.Available) * cfg.MemoryFraction)
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Debug("stream created",
		zap.Int("workers", s.workers),
		zap.Int("grain_size", s.grain),
		zap.Int64("memory_limit", s.limit))

	return s, nil
}

// Default returns a stream with the default engine configuration.
func Default() *Stream {
	s, err := New(config.Default().Engine)
	if err != nil {
		panic(err)
	}
	return s
}

// Allocator returns the allocator backing the stream's buffers.
func (s *Stream) Allocator() memory.Allocator { return s.mem }

// Workers returns the maximum number of ranges executed at once.
func (s *Stream) Workers() int { return s.workers }

// GrainSize returns the number of elements per range.
func (s *Stream) GrainSize() int { return s.grain }

// MemoryLimit returns the allocation cap in bytes, 0 when unlimited.
func (s *Stream) MemoryLimit() int64 { return s.limit }

// BytesInUse returns the bytes currently held through the stream.
func (s *Stream) BytesInUse() int64 { return s.mem.InUse() }

// Logger returns the stream logger.
func (s *Stream) Logger() *zap.Logger { return s.logger }

func (s *Stream) reserve(size int) error {
	if s.limit <= 0 {
		return nil
	}
	inUse := s.mem.InUse()
	if inUse+int64(size) > s.limit {
		return errors.New(errors.ErrorTypeAllocation, "memory limit exceeded").
			WithDetail("requested", size).
			WithDetail("in_use", inUse).
			WithDetail("limit", s.limit)
	}
	return nil
}

// NewBuffer allocates a buffer of size bytes. Contents are unspecified.
func (s *Stream) NewBuffer(size int) (*memory.Buffer, error) {
	if err := s.reserve(size); err != nil {
		return nil, err
	}
	buf := memory.NewResizableBuffer(s.mem)
	buf.Resize(size)
	return buf, nil
}

// NewBitmap allocates a validity bitmap of n elements.
func (s *Stream) NewBitmap(n int, valid bool) (*bitmask.Bitmap, error) {
	if err := s.reserve(bitmask.SizeInBytes(n)); err != nil {
		return nil, err
	}
	return bitmask.New(s.mem, n, valid), nil
}

// CloneBitmap copies b into a new bitmap.
func (s *Stream) CloneBitmap(b *bitmask.Bitmap) (*bitmask.Bitmap, error) {
	if err := s.reserve(bitmask.SizeInBytes(b.Len())); err != nil {
		return nil, err
	}
	return b.Clone(s.mem), nil
}

// CopyTable deep copies t into buffers held through the stream.
func (s *Stream) CopyTable(t *column.Table) (*column.Table, error) {
	if err := s.reserve(t.SizeInBytes()); err != nil {
		return nil, err
	}
	return t.Copy(s.mem), nil
}

func roundUp(v, multiple int) int {
	return (v + multiple - 1) / multiple * multiple
}
