// Package prefix implements the chunked parallel prefix scan shared by the
// scan kernels and the variable-length output builder.
//
// The index space is split into the stream's partitions and scanned in
// three phases:
//
//  1. every partition reduces its elements to a partition total
//  2. the totals are combined sequentially into per-partition carries
//  3. every partition rescans its elements seeded with its carry
//
// Phase 2 touches one value per partition, so the work is dominated by the
// two parallel passes.
package prefix

import (
	"context"

	"github.com/ajitpratap0/stratum/pkg/stream"
)

// Monoid is an associative operator with an identity element.
type Monoid[T any] interface {
	Identity() T
	Combine(a, b T) T
}

// Scan writes the prefix reduction of load(0..n-1) to out. With exclusive
// set out[i] combines elements [0, i) and out[0] is the identity; otherwise
// out[i] combines elements [0, i]. load must be safe for concurrent use.
func Scan[T any](ctx context.Context, s *stream.Stream, n int, load func(int) T, out []T, m Monoid[T], exclusive bool) error {
	ranges := s.Partition(n)
	carries, err := carriesOf(ctx, s, ranges, load, m)
	if err != nil {
		return err
	}

	return s.LaunchRanges(ctx, ranges, s.Workers(), func(r stream.Range) error {
		acc := carries[r.Index]
		if exclusive {
			for i := r.Start; i < r.End; i++ {
				out[i] = acc
				acc = m.Combine(acc, load(i))
			}
			return nil
		}
		for i := r.Start; i < r.End; i++ {
			acc = m.Combine(acc, load(i))
			out[i] = acc
		}
		return nil
	})
}

// Reduce combines load(0..n-1) into one value. It returns the identity for
// an empty index space.
func Reduce[T any](ctx context.Context, s *stream.Stream, n int, load func(int) T, m Monoid[T]) (T, error) {
	ranges := s.Partition(n)
	totals, err := totalsOf(ctx, s, ranges, load, m)
	if err != nil {
		return m.Identity(), err
	}
	acc := m.Identity()
	for _, t := range totals {
		acc = m.Combine(acc, t)
	}
	return acc, nil
}

// carriesOf runs phases 1 and 2. carries[j] combines every element before
// partition j. A single partition needs no reduce pass.
func carriesOf[T any](ctx context.Context, s *stream.Stream, ranges []stream.Range, load func(int) T, m Monoid[T]) ([]T, error) {
	carries := make([]T, len(ranges))
	if len(ranges) <= 1 {
		for i := range carries {
			carries[i] = m.Identity()
		}
		return carries, nil
	}

	totals, err := totalsOf(ctx, s, ranges, load, m)
	if err != nil {
		return nil, err
	}
	acc := m.Identity()
	for j, t := range totals {
		carries[j] = acc
		acc = m.Combine(acc, t)
	}
	return carries, nil
}

func totalsOf[T any](ctx context.Context, s *stream.Stream, ranges []stream.Range, load func(int) T, m Monoid[T]) ([]T, error) {
	totals := make([]T, len(ranges))
	err := s.LaunchRanges(ctx, ranges, s.Workers(), func(r stream.Range) error {
		acc := m.Identity()
		for i := r.Start; i < r.End; i++ {
			acc = m.Combine(acc, load(i))
		}
		totals[r.Index] = acc
		return nil
	})
	return totals, err
}
