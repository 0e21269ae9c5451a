package filter

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/stream"
	"github.com/ajitpratap0/stratum/pkg/varlen"
)

// Gather returns a table whose row j is row rows[j] of table. Indices may
// repeat and appear in any order.
func Gather(ctx context.Context, s *stream.Stream, table *column.Table, rows []int32) (*column.Table, error) {
	ctx, inv := s.Begin(ctx, "gather", "table", len(rows))
	out, err := gatherChecked(ctx, s, table, rows)
	inv.End(err)
	return out, err
}

func gatherChecked(ctx context.Context, s *stream.Stream, table *column.Table, rows []int32) (*column.Table, error) {
	n := table.NumRows()
	for j, r := range rows {
		if r < 0 || int(r) >= n {
			return nil, errors.New(errors.ErrorTypeValidation, "gather index out of range").
				WithDetail("position", j).
				WithDetail("index", r).
				WithDetail("rows", n)
		}
	}
	return gather(ctx, s, table, rows)
}

func gather(ctx context.Context, s *stream.Stream, table *column.Table, rows []int32) (*column.Table, error) {
	cols := make([]*column.Column, 0, table.NumColumns())
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}

	for _, c := range table.Columns() {
		out, err := gatherColumn(ctx, s, c, rows)
		if err != nil {
			release()
			return nil, err
		}
		cols = append(cols, out)
	}

	out, err := column.NewTable(cols...)
	if err != nil {
		release()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid gather output")
	}
	return out, nil
}

func gatherColumn(ctx context.Context, s *stream.Stream, c *column.Column, rows []int32) (*column.Column, error) {
	validity, err := gatherValidity(ctx, s, c, rows)
	if err != nil {
		return nil, err
	}

	if c.Type().ID == column.String {
		return varlen.Build(ctx, s, len(rows), validity,
			func(j int) int { return len(c.StringBytes(int(rows[j]))) },
			func(j int, dst []byte) int { return copy(dst, c.StringBytes(int(rows[j]))) })
	}

	var buf *memory.Buffer
	switch c.Type().ID.ByteWidth() {
	case 1:
		buf, err = gatherFixed[uint8](ctx, s, c, rows)
	case 2:
		buf, err = gatherFixed[uint16](ctx, s, c, rows)
	case 4:
		buf, err = gatherFixed[uint32](ctx, s, c, rows)
	case 8:
		buf, err = gatherFixed[uint64](ctx, s, c, rows)
	default:
		err = errors.Unsupported("gather", c.Type().String())
	}
	if err != nil {
		validity.Release()
		return nil, err
	}

	out, err := column.NewFixed(c.Type(), len(rows), buf, validity)
	if err != nil {
		buf.Release()
		validity.Release()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid gather output")
	}
	return out, nil
}

// gatherFixed copies fixed-width elements through an unsigned view of the
// element width, which is exact for every fixed-width type.
func gatherFixed[T uint8 | uint16 | uint32 | uint64](ctx context.Context, s *stream.Stream, c *column.Column, rows []int32) (*memory.Buffer, error) {
	n := len(rows)
	buf, err := s.NewBuffer(n * c.Type().ID.ByteWidth())
	if err != nil {
		return nil, err
	}
	in := column.BufferValues[T](c.Data(), c.Len())
	out := column.BufferValues[T](buf, n)

	err = s.Launch(ctx, n, func(r stream.Range) error {
		for j := r.Start; j < r.End; j++ {
			out[j] = in[rows[j]]
		}
		return nil
	})
	if err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

func gatherValidity(ctx context.Context, s *stream.Stream, c *column.Column, rows []int32) (*bitmask.Bitmap, error) {
	src := c.Validity()
	if src == nil {
		return nil, nil
	}
	dst, err := s.NewBitmap(len(rows), true)
	if err != nil {
		return nil, err
	}
	err = s.Launch(ctx, len(rows), func(r stream.Range) error {
		for j := r.Start; j < r.End; j++ {
			if !src.Get(int(rows[j])) {
				dst.Set(j, false)
			}
		}
		return nil
	})
	if err != nil {
		dst.Release()
		return nil, err
	}
	return dst, nil
}
