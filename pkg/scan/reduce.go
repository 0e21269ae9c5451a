package scan

import (
	"context"

	"github.com/ajitpratap0/stratum/internal/prefix"
	"github.com/ajitpratap0/stratum/pkg/aggregation"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/stream"
)

// Scalar is the result of a reduction. Value holds the Go value backing
// the column type: int32 or int64 unscaled values for decimals and string
// for strings. Valid is false when the column has no valid element.
type Scalar struct {
	Type  column.DataType
	Valid bool
	Value any
}

// Reduce combines every valid element of col with op. Null elements are
// skipped. The same type and operator restrictions as Scan apply.
func Reduce(ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op) (Scalar, error) {
	ctx, inv := s.Begin(ctx, "reduce", col.Type().String(), col.Len())
	out, err := reduce(ctx, s, col, op)
	inv.End(err)
	return out, err
}

func reduce(ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op) (Scalar, error) {
	dtype := col.Type()
	if err := aggregation.Validate(dtype.ID, op); err != nil {
		return Scalar{}, err
	}

	result := Scalar{Type: dtype, Valid: col.NullCount() < col.Len()}
	var err error
	switch dtype.ID {
	case column.Int8:
		result.Value, err = reduceFixed[int8](ctx, s, col, op)
	case column.Int16:
		result.Value, err = reduceFixed[int16](ctx, s, col, op)
	case column.Int32, column.Decimal32:
		result.Value, err = reduceFixed[int32](ctx, s, col, op)
	case column.Int64, column.Decimal64:
		result.Value, err = reduceFixed[int64](ctx, s, col, op)
	case column.Uint8:
		result.Value, err = reduceFixed[uint8](ctx, s, col, op)
	case column.Uint16:
		result.Value, err = reduceFixed[uint16](ctx, s, col, op)
	case column.Uint32:
		result.Value, err = reduceFixed[uint32](ctx, s, col, op)
	case column.Uint64:
		result.Value, err = reduceFixed[uint64](ctx, s, col, op)
	case column.Float32:
		result.Value, err = reduceFixed[float32](ctx, s, col, op)
	case column.Float64:
		result.Value, err = reduceFixed[float64](ctx, s, col, op)
	case column.String:
		var best int32
		best, err = prefix.Reduce(ctx, s, col.Len(), func(i int) int32 {
			if col.IsNull(i) {
				return -1
			}
			return int32(i)
		}, stringBest{col: col, max: op == aggregation.Max})
		value := ""
		if best >= 0 {
			value = string(col.StringBytes(int(best)))
		}
		result.Value = value
	default:
		return Scalar{}, errors.Unsupported("reduce", dtype.String())
	}
	if err != nil {
		return Scalar{}, err
	}
	return result, nil
}

func reduceFixed[T aggregation.Numeric](ctx context.Context, s *stream.Stream, col *column.Column, op aggregation.Op) (T, error) {
	m := aggregation.NewOperator[T](op)
	in := column.BufferValues[T](col.Data(), col.Len())
	identity := m.Identity()
	return prefix.Reduce(ctx, s, col.Len(), func(i int) T {
		if col.IsNull(i) {
			return identity
		}
		return in[i]
	}, m)
}
