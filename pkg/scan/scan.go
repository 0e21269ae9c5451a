// Package scan implements null-aware prefix scans and reductions over
// columns.
//
// An inclusive scan writes out[i] = in[0] op ... op in[i]; an exclusive
// scan writes out[i] = in[0] op ... op in[i-1] with out[0] the identity of
// op. Null elements are replaced by the identity before they are combined.
// The NullPolicy decides which outputs are null:
//
//   - NullExclude copies the input validity, so null in means null out
//   - NullInclude on an exclusive scan produces no nulls
//   - NullInclude on an inclusive scan makes every output from the first
//     null input onward null
package scan

import (
	"bytes"
	"context"

	"github.com/ajitpratap0/stratum/internal/prefix"
	"github.com/ajitpratap0/stratum/pkg/aggregation"
	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/stream"
	"github.com/ajitpratap0/stratum/pkg/varlen"
)

// Kind selects inclusive or exclusive scans
type Kind int

const (
	Inclusive Kind = iota
	Exclusive
)

func (k Kind) String() string {
	if k == Exclusive {
		return "exclusive"
	}
	return "inclusive"
}

// NullPolicy selects how null inputs affect the output validity
type NullPolicy int

const (
	NullInclude NullPolicy = iota
	NullExclude
)

func (p NullPolicy) String() string {
	if p == NullExclude {
		return "exclude"
	}
	return "include"
}

// Scan returns the prefix scan of col under op. The result is allocated
// from the stream and owned by the caller.
//
// Unsupported combinations fail before any work is launched: every scan on
// Bool, Product on Decimal32 and Decimal64, exclusive scans on strings and
// any operator but Min and Max on strings.
func Scan(ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op, kind Kind, nulls NullPolicy) (*column.Column, error) {
	ctx, inv := s.Begin(ctx, "scan", col.Type().String(), col.Len())
	out, err := scan(ctx, s, col, op, kind, nulls)
	inv.End(err)
	return out, err
}

func validate(dtype column.DataType, op aggregation.Op, kind Kind) error {
	if err := aggregation.Validate(dtype.ID, op); err != nil {
		return err
	}
	if dtype.ID == column.String && kind == Exclusive {
		return errors.Unsupported("exclusive "+op.String()+" scan", dtype.String())
	}
	return nil
}

func scan(ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op, kind Kind, nulls NullPolicy) (*column.Column, error) {
	dtype := col.Type()
	if err := validate(dtype, op, kind); err != nil {
		return nil, err
	}

	var (
		out *column.Column
		err error
	)
	switch dtype.ID {
	case column.Int8:
		out, err = scanFixed[int8](ctx, s, col, op, kind, nulls)
	case column.Int16:
		out, err = scanFixed[int16](ctx, s, col, op, kind, nulls)
	case column.Int32, column.Decimal32:
		out, err = scanFixed[int32](ctx, s, col, op, kind, nulls)
	case column.Int64, column.Decimal64:
		out, err = scanFixed[int64](ctx, s, col, op, kind, nulls)
	case column.Uint8:
		out, err = scanFixed[uint8](ctx, s, col, op, kind, nulls)
	case column.Uint16:
		out, err = scanFixed[uint16](ctx, s, col, op, kind, nulls)
	case column.Uint32:
		out, err = scanFixed[uint32](ctx, s, col, op, kind, nulls)
	case column.Uint64:
		out, err = scanFixed[uint64](ctx, s, col, op, kind, nulls)
	case column.Float32:
		out, err = scanFixed[float32](ctx, s, col, op, kind, nulls)
	case column.Float64:
		out, err = scanFixed[float64](ctx, s, col, op, kind, nulls)
	case column.String:
		out, err = scanStrings(ctx, s, col, op, nulls)
	default:
		return nil, errors.Unsupported("scan", dtype.String())
	}
	if err != nil {
		return nil, err
	}

	if nulls == NullExclude && out.NullCount() != col.NullCount() {
		out.Release()
		return nil, errors.New(errors.ErrorTypeInternal, "scan output null count differs from input").
			WithDetail("input_nulls", col.NullCount()).
			WithDetail("output_nulls", out.NullCount())
	}
	return out, nil
}

func scanFixed[T aggregation.Numeric](ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op, kind Kind, nulls NullPolicy) (*column.Column, error) {
	n := col.Len()
	m := aggregation.NewOperator[T](op)
	in := column.BufferValues[T](col.Data(), n)

	load := func(i int) T { return in[i] }
	if validity := col.Validity(); validity != nil && col.NullCount() > 0 {
		identity := m.Identity()
		load = func(i int) T {
			if !validity.Get(i) {
				return identity
			}
			return in[i]
		}
	}

	buf, err := s.NewBuffer(n * col.Type().ID.ByteWidth())
	if err != nil {
		return nil, err
	}
	if err := prefix.Scan(ctx, s, n, load, column.BufferValues[T](buf, n), m, kind == Exclusive); err != nil {
		buf.Release()
		return nil, err
	}

	mask, err := outputMask(s, col, kind, nulls)
	if err != nil {
		buf.Release()
		return nil, err
	}
	out, err := column.NewFixed(col.Type(), n, buf, mask)
	if err != nil {
		buf.Release()
		mask.Release()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid scan output")
	}
	return out, nil
}

// outputMask returns the validity of a scan result, nil when every output
// is valid.
func outputMask(s *stream.Stream, col *column.Column, kind Kind, nulls NullPolicy) (*bitmask.Bitmap, error) {
	validity := col.Validity()
	switch {
	case validity == nil:
		return nil, nil
	case nulls == NullExclude:
		return s.CloneBitmap(validity)
	case kind == Exclusive || col.NullCount() == 0:
		return nil, nil
	}

	mask, err := s.NewBitmap(col.Len(), false)
	if err != nil {
		return nil, err
	}
	mask.SetRange(0, validity.FindFirstUnset(), true)
	return mask, nil
}

// stringBest tracks the index of the smallest or largest string seen so
// far; -1 stands for the identity.
type stringBest struct {
	col *column.Column
	max bool
}

func (stringBest) Identity() int32 { return -1 }

func (b stringBest) Combine(x, y int32) int32 {
	if x < 0 {
		return y
	}
	if y < 0 {
		return x
	}
	c := bytes.Compare(b.col.StringBytes(int(y)), b.col.StringBytes(int(x)))
	if (b.max && c > 0) || (!b.max && c < 0) {
		return y
	}
	return x
}

// scanStrings computes an inclusive Min or Max scan in lexicographic byte
// order. The scan runs over element indices; the winning strings are then
// copied out with the two-pass builder.
func scanStrings(ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op, nulls NullPolicy) (*column.Column, error) {
	n := col.Len()
	scratch, err := s.NewBuffer(n * 4)
	if err != nil {
		return nil, err
	}
	defer scratch.Release()
	best := column.BufferValues[int32](scratch, n)

	load := func(i int) int32 {
		if col.IsNull(i) {
			return -1
		}
		return int32(i)
	}
	m := stringBest{col: col, max: op == aggregation.Max}
	if err := prefix.Scan(ctx, s, n, load, best, m, false); err != nil {
		return nil, err
	}

	mask, err := outputMask(s, col, Inclusive, nulls)
	if err != nil {
		return nil, err
	}
	return varlen.Build(ctx, s, n, mask,
		func(i int) int {
			if best[i] < 0 {
				return 0
			}
			return len(col.StringBytes(int(best[i])))
		},
		func(i int, dst []byte) int {
			return copy(dst, col.StringBytes(int(best[i])))
		})
}
