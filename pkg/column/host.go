package column

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stratum/pkg/bitmask"
)

// FromSlice copies host values into a new column of the natural type of T.
// valid may be nil for a column without nulls; otherwise it must have the
// same length as values.
func FromSlice[T Native](mem memory.Allocator, values []T, valid []bool) *Column {
	return mustFixed(mem, Type(TypeOf[T]()), values, valid)
}

// FromDecimals copies unscaled fixed-point values into a Decimal32 (int32)
// or Decimal64 (int64) column.
func FromDecimals[T int32 | int64](mem memory.Allocator, scale int32, unscaled []T, valid []bool) *Column {
	id := Decimal32
	if sizeOf[T]() == 8 {
		id = Decimal64
	}
	return mustFixed(mem, Decimal(id, scale), unscaled, valid)
}

// FromBools copies host booleans into a Bool column, one byte per element.
func FromBools(mem memory.Allocator, values []bool, valid []bool) *Column {
	bytes := make([]uint8, len(values))
	for i, v := range values {
		if v {
			bytes[i] = 1
		}
	}
	return mustFixed(mem, Type(Bool), bytes, valid)
}

func mustFixed[T Native](mem memory.Allocator, dtype DataType, values []T, valid []bool) *Column {
	if valid != nil && len(valid) != len(values) {
		panic(fmt.Sprintf("column: %d validity flags for %d values", len(valid), len(values)))
	}
	data := memory.NewResizableBuffer(mem)
	data.Resize(len(values) * sizeOf[T]())
	copy(BufferValues[T](data, len(values)), values)

	c, err := NewFixed(dtype, len(values), data, validityFromBools(mem, valid))
	if err != nil {
		panic(err)
	}
	return c
}

// FromStrings copies host strings into a String column. Null elements take
// no character bytes.
func FromStrings(mem memory.Allocator, values []string, valid []bool) *Column {
	if valid != nil && len(valid) != len(values) {
		panic(fmt.Sprintf("column: %d validity flags for %d values", len(valid), len(values)))
	}
	total := 0
	for i, s := range values {
		if valid == nil || valid[i] {
			total += len(s)
		}
	}

	offsets := memory.NewResizableBuffer(mem)
	offsets.Resize((len(values) + 1) * 4)
	offs := BufferValues[int32](offsets, len(values)+1)
	chars := memory.NewResizableBuffer(mem)
	chars.Resize(total)
	b := chars.Bytes()

	pos := 0
	offs[0] = 0
	for i, s := range values {
		if valid == nil || valid[i] {
			pos += copy(b[pos:], s)
		}
		offs[i+1] = int32(pos)
	}

	c, err := NewString(len(values), offsets, chars, validityFromBools(mem, valid))
	if err != nil {
		panic(err)
	}
	return c
}

func validityFromBools(mem memory.Allocator, valid []bool) *bitmask.Bitmap {
	if valid == nil {
		return nil
	}
	return bitmask.FromBools(mem, valid)
}

// ToSlice copies the elements of a fixed-width column to the host. Null
// elements hold whatever value the producing kernel left there.
func ToSlice[T Native](c *Column) []T {
	out := make([]T, c.Len())
	copy(out, Values[T](c))
	return out
}

// ValidSlice returns the validity of every element.
func ValidSlice(c *Column) []bool {
	out := make([]bool, c.Len())
	for i := range out {
		out[i] = c.IsValid(i)
	}
	return out
}

// Bools copies a Bool column to the host.
func Bools(c *Column) []bool {
	vals := Values[uint8](c)
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v != 0
	}
	return out
}

// Strings copies a String column to the host. Null elements become "".
func Strings(c *Column) []string {
	out := make([]string, c.Len())
	for i := range out {
		if c.IsValid(i) {
			out[i] = string(c.StringBytes(i))
		}
	}
	return out
}
