package column

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Maximum decimal digits of an unscaled int32 and int64.
const (
	decimal32Precision = 9
	decimal64Precision = 18
)

// ArrowType returns the Arrow type a column of dtype converts to.
// Decimals widen to Decimal128, the decimal width every Arrow and Parquet
// reader understands.
func ArrowType(dtype DataType) (arrow.DataType, error) {
	switch dtype.ID {
	case Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case Int8:
		return arrow.PrimitiveTypes.Int8, nil
	case Int16:
		return arrow.PrimitiveTypes.Int16, nil
	case Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case Uint8:
		return arrow.PrimitiveTypes.Uint8, nil
	case Uint16:
		return arrow.PrimitiveTypes.Uint16, nil
	case Uint32:
		return arrow.PrimitiveTypes.Uint32, nil
	case Uint64:
		return arrow.PrimitiveTypes.Uint64, nil
	case Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case Decimal32:
		return &arrow.Decimal128Type{Precision: decimal32Precision, Scale: dtype.Scale}, nil
	case Decimal64:
		return &arrow.Decimal128Type{Precision: decimal64Precision, Scale: dtype.Scale}, nil
	case String:
		return arrow.BinaryTypes.String, nil
	}
	return nil, errors.Unsupported("arrow export", dtype.String())
}

// ToArrow converts a column to an Arrow array. Numeric and string buffers
// are shared with the column; booleans and decimals are re-encoded into
// buffers allocated from mem.
func ToArrow(c *Column, mem memory.Allocator) (arrow.Array, error) {
	atype, err := ArrowType(c.dtype)
	if err != nil {
		return nil, err
	}

	var validity *memory.Buffer
	if c.validity != nil && c.nullCount > 0 {
		validity = c.validity.Buffer()
	}

	var buffers []*memory.Buffer
	switch c.dtype.ID {
	case Bool:
		packed := packBools(mem, Values[uint8](c))
		defer packed.Release()
		buffers = []*memory.Buffer{validity, packed}
	case Decimal32, Decimal64:
		wide := widenDecimals(mem, c)
		defer wide.Release()
		buffers = []*memory.Buffer{validity, wide}
	case String:
		buffers = []*memory.Buffer{validity, c.offsets, c.data}
	default:
		buffers = []*memory.Buffer{validity, c.data}
	}

	data := array.NewData(atype, c.length, buffers, nil, c.nullCount, 0)
	defer data.Release()
	return array.MakeFromData(data), nil
}

func packBools(mem memory.Allocator, vals []uint8) *memory.Buffer {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(int(bitutil.BytesForBits(int64(len(vals)))))
	out := buf.Bytes()
	for i := range out {
		out[i] = 0
	}
	for i, v := range vals {
		if v != 0 {
			bitutil.SetBit(out, i)
		}
	}
	return buf
}

func widenDecimals(mem memory.Allocator, c *Column) *memory.Buffer {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(c.length * 16)
	out := buf.Bytes()
	put := func(i int, v int64) {
		binary.LittleEndian.PutUint64(out[i*16:], uint64(v))
		binary.LittleEndian.PutUint64(out[i*16+8:], uint64(v>>63))
	}
	if c.dtype.ID == Decimal32 {
		for i, v := range Values[int32](c) {
			put(i, int64(v))
		}
	} else {
		for i, v := range Values[int64](c) {
			put(i, v)
		}
	}
	return buf
}

// FromArrow copies an Arrow array into a new column allocated from mem.
// Decimal128 arrays narrow to Decimal32 or Decimal64 by precision.
func FromArrow(arr arrow.Array, mem memory.Allocator) (*Column, error) {
	valid := validFlags(arr)

	switch a := arr.(type) {
	case *array.Boolean:
		vals := make([]bool, a.Len())
		for i := range vals {
			vals[i] = a.IsValid(i) && a.Value(i)
		}
		return FromBools(mem, vals, valid), nil
	case *array.Int8:
		return FromSlice(mem, a.Int8Values(), valid), nil
	case *array.Int16:
		return FromSlice(mem, a.Int16Values(), valid), nil
	case *array.Int32:
		return FromSlice(mem, a.Int32Values(), valid), nil
	case *array.Int64:
		return FromSlice(mem, a.Int64Values(), valid), nil
	case *array.Uint8:
		return FromSlice(mem, a.Uint8Values(), valid), nil
	case *array.Uint16:
		return FromSlice(mem, a.Uint16Values(), valid), nil
	case *array.Uint32:
		return FromSlice(mem, a.Uint32Values(), valid), nil
	case *array.Uint64:
		return FromSlice(mem, a.Uint64Values(), valid), nil
	case *array.Float32:
		return FromSlice(mem, a.Float32Values(), valid), nil
	case *array.Float64:
		return FromSlice(mem, a.Float64Values(), valid), nil
	case *array.String:
		vals := make([]string, a.Len())
		for i := range vals {
			if a.IsValid(i) {
				vals[i] = a.Value(i)
			}
		}
		return FromStrings(mem, vals, valid), nil
	case *array.Decimal32:
		scale := a.DataType().(*arrow.Decimal32Type).Scale
		vals := make([]int32, a.Len())
		for i := range vals {
			vals[i] = int32(a.Value(i))
		}
		return FromDecimals(mem, scale, vals, valid), nil
	case *array.Decimal64:
		scale := a.DataType().(*arrow.Decimal64Type).Scale
		vals := make([]int64, a.Len())
		for i := range vals {
			vals[i] = int64(a.Value(i))
		}
		return FromDecimals(mem, scale, vals, valid), nil
	case *array.Decimal128:
		dt := a.DataType().(*arrow.Decimal128Type)
		switch {
		case dt.Precision <= decimal32Precision:
			vals := make([]int32, a.Len())
			for i := range vals {
				vals[i] = int32(int64(a.Value(i).LowBits()))
			}
			return FromDecimals(mem, dt.Scale, vals, valid), nil
		case dt.Precision <= decimal64Precision:
			vals := make([]int64, a.Len())
			for i := range vals {
				vals[i] = int64(a.Value(i).LowBits())
			}
			return FromDecimals(mem, dt.Scale, vals, valid), nil
		}
	}
	return nil, errors.Unsupported("arrow import", arr.DataType().String())
}

func validFlags(arr arrow.Array) []bool {
	if arr.NullN() == 0 {
		return nil
	}
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}
