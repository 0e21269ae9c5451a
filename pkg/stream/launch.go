package stream

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Range is a contiguous slice [Start, End) of an index space
type Range struct {
	Index int
	Start int
	End   int
}

// Len returns the number of indices in the range
func (r Range) Len() int { return r.End - r.Start }

// Partition splits [0, n) into ranges of GrainSize elements. Every range
// starts on a multiple of 64, so ranges never share a bitmap word.
func (s *Stream) Partition(n int) []Range {
	if n <= 0 {
		return nil
	}
	count := (n + s.grain - 1) / s.grain
	ranges := make([]Range, count)
	for i := range ranges {
		start := i * s.grain
		end := start + s.grain
		if end > n {
			end = n
		}
		ranges[i] = Range{Index: i, Start: start, End: end}
	}
	return ranges
}

// Launch runs fn over every range of [0, n) with up to Workers ranges at
// once and waits for all of them. The context is checked once before
// launch; running ranges are never interrupted. After a range fails the
// ranges that have not started yet are skipped and the first error is
// returned.
func (s *Stream) Launch(ctx context.Context, n int, fn func(Range) error) error {
	return s.LaunchRanges(ctx, s.Partition(n), s.workers, fn)
}

// LaunchLimited is Launch with a lower worker bound.
func (s *Stream) LaunchLimited(ctx context.Context, n, workers int, fn func(Range) error) error {
	if workers <= 0 || workers > s.workers {
		workers = s.workers
	}
	return s.LaunchRanges(ctx, s.Partition(n), workers, fn)
}

// LaunchRanges runs fn over the given ranges with up to workers at once.
func (s *Stream) LaunchRanges(ctx context.Context, ranges []Range, workers int, fn func(Range) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "launch cancelled")
	}
	switch len(ranges) {
	case 0:
		return nil
	case 1:
		return fn(ranges[0])
	}

	if workers <= 0 {
		workers = s.workers
	}

	var (
		g      errgroup.Group
		failed atomic.Bool
	)
	g.SetLimit(workers)
	for _, r := range ranges {
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			if err := fn(r); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
