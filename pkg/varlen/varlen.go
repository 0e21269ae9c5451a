// Package varlen builds string columns whose element sizes are only known
// after looking at the input.
//
// Build runs two parallel passes. The size pass records the exact byte
// length of every output element, an exclusive Sum scan turns the sizes
// into offsets, the character buffer is allocated once and the fill pass
// writes every element into its slot.
package varlen

import (
	"context"
	"math"

	"github.com/ajitpratap0/stratum/internal/prefix"
	"github.com/ajitpratap0/stratum/pkg/aggregation"
	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/stream"
)

// SizeFunc returns the byte length of output element i.
type SizeFunc func(i int) int

// WriteFunc writes output element i into dst, which has exactly the length
// SizeFunc reported, and returns the number of bytes written.
type WriteFunc func(i int, dst []byte) int

// Build produces a string column of n elements. Null elements of validity
// have no bytes and are never passed to size or write. Build takes
// ownership of validity, which may be nil, and releases it on failure.
//
// The total output size must fit the int32 offsets; larger outputs fail
// with a size mismatch before the character buffer is allocated.
func Build(ctx context.Context, s *stream.Stream, n int, validity *bitmask.Bitmap, size SizeFunc, write WriteFunc) (*column.Column, error) {
	return BuildLimited(ctx, s, n, s.Workers(), validity, size, write)
}

// BuildLimited is Build with the size and fill passes running at most
// workers ranges at once.
func BuildLimited(ctx context.Context, s *stream.Stream, n, workers int, validity *bitmask.Bitmap, size SizeFunc, write WriteFunc) (out *column.Column, err error) {
	defer func() {
		if err != nil {
			validity.Release()
		}
	}()

	sizesBuf, err := s.NewBuffer(n * 8)
	if err != nil {
		return nil, err
	}
	defer sizesBuf.Release()
	sizes := column.BufferValues[int64](sizesBuf, n)

	err = s.LaunchLimited(ctx, n, workers, func(r stream.Range) error {
		for i := r.Start; i < r.End; i++ {
			if validity != nil && !validity.Get(i) {
				sizes[i] = 0
				continue
			}
			sizes[i] = int64(size(i))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total, err := prefix.Reduce(ctx, s, n, func(i int) int64 { return sizes[i] }, aggregation.NewOperator[int64](aggregation.Sum))
	if err != nil {
		return nil, err
	}
	if total > math.MaxInt32 {
		return nil, errors.SizeMismatch("output characters", math.MaxInt32, int(total)).
			WithDetail("rows", n)
	}

	offsetsBuf, err := s.NewBuffer((n + 1) * 4)
	if err != nil {
		return nil, err
	}
	offsets := column.BufferValues[int32](offsetsBuf, n+1)
	err = prefix.Scan(ctx, s, n+1, func(i int) int32 {
		if i == n {
			return 0
		}
		return int32(sizes[i])
	}, offsets, aggregation.NewOperator[int32](aggregation.Sum), true)
	if err != nil {
		offsetsBuf.Release()
		return nil, err
	}

	chars, err := s.NewBuffer(int(total))
	if err != nil {
		offsetsBuf.Release()
		return nil, err
	}
	data := chars.Bytes()

	err = s.LaunchLimited(ctx, n, workers, func(r stream.Range) error {
		for i := r.Start; i < r.End; i++ {
			start, end := offsets[i], offsets[i+1]
			if start == end {
				continue
			}
			if written := write(i, data[start:end:end]); written != int(end-start) {
				return errors.New(errors.ErrorTypeInternal, "element size changed between passes").
					WithDetail("row", i).
					WithDetail("sized", int(end-start)).
					WithDetail("written", written)
			}
		}
		return nil
	})
	if err == nil {
		out, err = column.NewString(n, offsetsBuf, chars, validity)
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeInternal, "invalid string output")
		}
	}
	if err != nil {
		offsetsBuf.Release()
		chars.Release()
		return nil, err
	}
	return out, nil
}
