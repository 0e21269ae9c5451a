package column

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

func TestTypeID(t *testing.T) {
	assert.Equal(t, "int32", Int32.String())
	assert.Equal(t, 8, Decimal64.ByteWidth())
	assert.Equal(t, 0, String.ByteWidth())
	assert.True(t, Uint16.IsInteger())
	assert.False(t, Uint16.IsSigned())
	assert.True(t, Int8.IsSigned())
	assert.False(t, Decimal32.IsInteger())
	assert.False(t, String.IsFixedWidth())
	assert.Equal(t, "decimal64(scale=2)", Decimal(Decimal64, 2).String())

	id, err := ParseTypeID("uint64")
	require.NoError(t, err)
	assert.Equal(t, Uint64, id)
	_, err = ParseTypeID("int128")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	assert.Equal(t, Float32, TypeOf[float32]())
	assert.Equal(t, Uint8, TypeOf[uint8]())
}

func TestFromSlice(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	c := FromSlice(mem, []int64{1, 2, 3, 4}, []bool{true, false, true, true})
	defer c.Release()

	assert.Equal(t, Type(Int64), c.Type())
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 1, c.NullCount())
	assert.True(t, c.IsNull(1))
	assert.Equal(t, []int64{1, 2, 3, 4}, ToSlice[int64](c))
	assert.Equal(t, []bool{true, false, true, true}, ValidSlice(c))

	plain := FromSlice(mem, []float32{1.5}, nil)
	defer plain.Release()
	assert.False(t, plain.Nullable())
	assert.Equal(t, 0, plain.NullCount())
}

func TestFromStrings(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	c := FromStrings(mem, []string{"ab", "skipped", "", "xyz"}, []bool{true, false, true, true})
	defer c.Release()

	assert.Equal(t, []int32{0, 2, 2, 2, 5}, c.Offsets())
	assert.Equal(t, "abxyz", string(c.Chars()))
	assert.Equal(t, []string{"ab", "", "", "xyz"}, Strings(c))
	assert.Equal(t, 1, c.NullCount())

	empty := FromStrings(mem, nil, nil)
	defer empty.Release()
	assert.Equal(t, []int32{0}, empty.Offsets())
}

func TestNewStringValidatesOffsets(t *testing.T) {
	mem := memory.NewGoAllocator()
	offsets := memory.NewResizableBuffer(mem)
	offsets.Resize(8)
	offs := BufferValues[int32](offsets, 2)
	offs[0], offs[1] = 0, 3
	chars := memory.NewResizableBuffer(mem)
	chars.Resize(2)

	_, err := NewString(1, offsets, chars, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSizeMismatch))

	_, err = NewFixed(Type(String), 1, chars, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))

	_, err = NewFixed(Type(Int64), 1, chars, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSizeMismatch))
	assert.Contains(t, err.Error(), "data buffer holds 2 bytes, need 8")
}

func TestCopyIsDeep(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	c := FromSlice(mem, []int32{5, 6}, []bool{true, false})
	defer c.Release()
	cp := c.Copy(mem)
	defer cp.Release()

	Values[int32](cp)[0] = 9
	cp.Validity().Set(1, true)
	assert.Equal(t, int32(5), Values[int32](c)[0])
	assert.True(t, c.IsNull(1))
	assert.Equal(t, 1, cp.NullCount(), "copy keeps the null count it was built with")
}

func TestTable(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a := FromSlice(mem, []int8{1, 2, 3}, nil)
	b := FromStrings(mem, []string{"x", "y", "z"}, []bool{true, true, false})
	tbl, err := NewTable(a, b)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, 2, tbl.NumColumns())
	assert.True(t, tbl.HasNulls())

	sel, err := tbl.Select(0)
	require.NoError(t, err)
	assert.False(t, sel.HasNulls())
	sel.Release()

	_, err = tbl.Select(4)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	short := FromSlice(mem, []int8{1}, nil)
	defer short.Release()
	_, err = NewTable(a, short)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSizeMismatch))

	// int8 data, then two valid characters, four offsets and one bitmap word
	assert.Equal(t, 3+2+4*4+8, tbl.SizeInBytes())

	empty, err := NewTable()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NumRows())
}

func TestArrowRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	columns := []*Column{
		FromSlice(mem, []int16{-1, 0, 7}, []bool{true, false, true}),
		FromSlice(mem, []uint64{1, 2, 3}, nil),
		FromSlice(mem, []float64{1.25, -3, 0}, nil),
		FromBools(mem, []bool{true, false, true}, []bool{true, true, false}),
		FromStrings(mem, []string{"a", "", "ccc"}, []bool{true, false, true}),
		FromDecimals(mem, 2, []int32{-12345, 0, 99}, nil),
		FromDecimals(mem, 4, []int64{-1, 1 << 40, 7}, []bool{true, true, false}),
	}

	for _, c := range columns {
		t.Run(c.Type().String(), func(t *testing.T) {
			defer c.Release()

			arr, err := ToArrow(c, mem)
			require.NoError(t, err)
			defer arr.Release()
			assert.Equal(t, c.NullCount(), arr.NullN())
			assert.Equal(t, c.Len(), arr.Len())

			back, err := FromArrow(arr, mem)
			require.NoError(t, err)
			defer back.Release()

			assert.Equal(t, c.Type(), back.Type())
			assert.Equal(t, ValidSlice(c), ValidSlice(back))
			switch c.Type().ID {
			case String:
				assert.Equal(t, Strings(c), Strings(back))
			case Bool:
				for i := 0; i < c.Len(); i++ {
					if c.IsValid(i) {
						assert.Equal(t, Bools(c)[i], Bools(back)[i])
					}
				}
			default:
				assert.Equal(t, c.Data().Bytes()[:c.Len()*c.Type().ID.ByteWidth()],
					back.Data().Bytes()[:back.Len()*back.Type().ID.ByteWidth()])
			}
		})
	}
}

func TestArrowDecimalEncoding(t *testing.T) {
	c := FromDecimals(memory.DefaultAllocator, 3, []int64{-5}, nil)
	defer c.Release()

	arr, err := ToArrow(c, memory.DefaultAllocator)
	require.NoError(t, err)
	defer arr.Release()

	dec := arr.(*array.Decimal128)
	assert.Equal(t, int32(3), dec.DataType().(*arrow.Decimal128Type).Scale)
	assert.Equal(t, int64(-1), dec.Value(0).HighBits())
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFB), dec.Value(0).LowBits())
}

func TestFromArrowUnsupported(t *testing.T) {
	b := array.NewDate32Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Append(1)
	arr := b.NewArray()
	defer arr.Release()

	_, err := FromArrow(arr, memory.DefaultAllocator)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupported))
}
