// Package convert converts between string columns and integer columns.
//
// Parsing is permissive: an optional sign is followed by decimal digits up
// to the first non-digit, anything after it is ignored, a string without
// digits parses as 0 and overflow wraps around in the target type.
package convert

import (
	"context"

	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/stream"
	"github.com/ajitpratap0/stratum/pkg/varlen"
)

// ToIntegers parses every element of a string column into an integer
// column of type outType. Null elements stay null.
func ToIntegers(ctx context.Context, s *stream.Stream, strs *column.Column, outType column.TypeID) (*column.Column, error) {
	ctx, inv := s.Begin(ctx, "to_integers", outType.String(), strs.Len())
	out, err := toIntegers(ctx, s, strs, outType)
	inv.End(err)
	return out, err
}

func toIntegers(ctx context.Context, s *stream.Stream, strs *column.Column, outType column.TypeID) (*column.Column, error) {
	if strs.Type().ID != column.String {
		return nil, errors.Unsupported("string to integer conversion", strs.Type().String())
	}
	switch outType {
	case column.Int8:
		return parseInto[int8](ctx, s, strs, outType)
	case column.Int16:
		return parseInto[int16](ctx, s, strs, outType)
	case column.Int32:
		return parseInto[int32](ctx, s, strs, outType)
	case column.Int64:
		return parseInto[int64](ctx, s, strs, outType)
	case column.Uint8:
		return parseInto[uint8](ctx, s, strs, outType)
	case column.Uint16:
		return parseInto[uint16](ctx, s, strs, outType)
	case column.Uint32:
		return parseInto[uint32](ctx, s, strs, outType)
	case column.Uint64:
		return parseInto[uint64](ctx, s, strs, outType)
	}
	return nil, errors.Unsupported("string to integer conversion", outType.String()).
		WithDetail("reason", "output type must be an integer type")
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func parseInto[T integer](ctx context.Context, s *stream.Stream, strs *column.Column, outType column.TypeID) (*column.Column, error) {
	n := strs.Len()
	buf, err := s.NewBuffer(n * outType.ByteWidth())
	if err != nil {
		return nil, err
	}
	out := column.BufferValues[T](buf, n)

	err = s.Launch(ctx, n, func(r stream.Range) error {
		for i := r.Start; i < r.End; i++ {
			if strs.IsNull(i) {
				out[i] = 0
				continue
			}
			out[i] = T(Parse(strs.StringBytes(i)))
		}
		return nil
	})
	if err != nil {
		buf.Release()
		return nil, err
	}

	validity, err := cloneValidity(s, strs)
	if err != nil {
		buf.Release()
		return nil, err
	}
	col, err := column.NewFixed(column.Type(outType), n, buf, validity)
	if err != nil {
		buf.Release()
		validity.Release()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid conversion output")
	}
	return col, nil
}

// Parse returns the permissive decimal value of b as a 64-bit pattern:
// converting the result to any integer type yields the value wrapped into
// that type.
func Parse(b []byte) uint64 {
	i, neg := 0, false
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		neg = b[0] == '-'
		i++
	}
	var v uint64
	for ; i < len(b); i++ {
		d := b[i] - '0'
		if d > 9 {
			break
		}
		v = v*10 + uint64(d)
	}
	if neg {
		v = -v
	}
	return v
}

// IsInteger reports for every element whether the whole string is an
// optional sign followed by at least one decimal digit.
func IsInteger(ctx context.Context, s *stream.Stream, strs *column.Column) (*column.Column, error) {
	ctx, inv := s.Begin(ctx, "is_integer", strs.Type().String(), strs.Len())
	out, err := isInteger(ctx, s, strs)
	inv.End(err)
	return out, err
}

func isInteger(ctx context.Context, s *stream.Stream, strs *column.Column) (*column.Column, error) {
	if strs.Type().ID != column.String {
		return nil, errors.Unsupported("integer check", strs.Type().String())
	}
	n := strs.Len()
	buf, err := s.NewBuffer(n)
	if err != nil {
		return nil, err
	}
	out := buf.Bytes()

	err = s.Launch(ctx, n, func(r stream.Range) error {
		for i := r.Start; i < r.End; i++ {
			out[i] = 0
			if strs.IsValid(i) && wholeInteger(strs.StringBytes(i)) {
				out[i] = 1
			}
		}
		return nil
	})
	if err != nil {
		buf.Release()
		return nil, err
	}

	validity, err := cloneValidity(s, strs)
	if err != nil {
		buf.Release()
		return nil, err
	}
	col, err := column.NewFixed(column.Type(column.Bool), n, buf, validity)
	if err != nil {
		buf.Release()
		validity.Release()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid integer check output")
	}
	return col, nil
}

func wholeInteger(b []byte) bool {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FromIntegers formats every element of an integer column as its decimal
// string. Negative values carry a leading '-'; null elements stay null and
// take no bytes.
func FromIntegers(ctx context.Context, s *stream.Stream, ints *column.Column) (*column.Column, error) {
	ctx, inv := s.Begin(ctx, "from_integers", ints.Type().String(), ints.Len())
	out, err := fromIntegers(ctx, s, ints)
	inv.End(err)
	return out, err
}

func fromIntegers(ctx context.Context, s *stream.Stream, ints *column.Column) (*column.Column, error) {
	var load func(i int) (neg bool, mag uint64)
	switch ints.Type().ID {
	case column.Int8:
		load = signed(column.Values[int8](ints))
	case column.Int16:
		load = signed(column.Values[int16](ints))
	case column.Int32:
		load = signed(column.Values[int32](ints))
	case column.Int64:
		load = signed(column.Values[int64](ints))
	case column.Uint8:
		load = unsigned(column.Values[uint8](ints))
	case column.Uint16:
		load = unsigned(column.Values[uint16](ints))
	case column.Uint32:
		load = unsigned(column.Values[uint32](ints))
	case column.Uint64:
		load = unsigned(column.Values[uint64](ints))
	default:
		return nil, errors.Unsupported("integer to string conversion", ints.Type().String())
	}

	validity, err := cloneValidity(s, ints)
	if err != nil {
		return nil, err
	}
	return varlen.Build(ctx, s, ints.Len(), validity,
		func(i int) int {
			neg, mag := load(i)
			return FormattedLen(neg, mag)
		},
		func(i int, dst []byte) int {
			neg, mag := load(i)
			return format(dst, neg, mag)
		})
}

func signed[T ~int8 | ~int16 | ~int32 | ~int64](vals []T) func(int) (bool, uint64) {
	return func(i int) (bool, uint64) {
		v := int64(vals[i])
		if v < 0 {
			// -MinInt64 wraps to MinInt64, whose uint64 pattern is its magnitude
			return true, uint64(-v)
		}
		return false, uint64(v)
	}
}

func unsigned[T ~uint8 | ~uint16 | ~uint32 | ~uint64](vals []T) func(int) (bool, uint64) {
	return func(i int) (bool, uint64) {
		return false, uint64(vals[i])
	}
}

// FormattedLen returns the number of bytes of the decimal form of a value
// with the given sign and magnitude. Zero formats as "0".
func FormattedLen(neg bool, mag uint64) int {
	n := 1
	for mag >= 10 {
		mag /= 10
		n++
	}
	if neg {
		n++
	}
	return n
}

// format writes digits least significant first and reverses them in place.
func format(dst []byte, neg bool, mag uint64) int {
	n := 0
	for {
		dst[n] = byte('0' + mag%10)
		n++
		mag /= 10
		if mag == 0 {
			break
		}
	}
	if neg {
		dst[n] = '-'
		n++
	}
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		dst[i], dst[j] = dst[j], dst[i]
	}
	return n
}

func cloneValidity(s *stream.Stream, col *column.Column) (*bitmask.Bitmap, error) {
	if col.Validity() == nil {
		return nil, nil
	}
	return s.CloneBitmap(col.Validity())
}
