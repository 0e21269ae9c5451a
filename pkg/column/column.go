package column

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stratum/pkg/bitmask"
	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Column is an immutable view over n typed elements and an optional
// validity bitmap.
//
// Fixed-width columns keep the elements in data. String columns keep n+1
// int32 offsets and the shared character bytes in data; element i is
// data[offsets[i]:offsets[i+1]]. A nil validity bitmap means no nulls.
type Column struct {
	dtype     DataType
	length    int
	data      *memory.Buffer
	offsets   *memory.Buffer
	validity  *bitmask.Bitmap
	nullCount int
}

// NewFixed wraps a fixed-width data buffer of at least n elements. The
// column takes ownership of data and validity.
func NewFixed(dtype DataType, n int, data *memory.Buffer, validity *bitmask.Bitmap) (*Column, error) {
	if !dtype.ID.IsFixedWidth() {
		return nil, errors.Unsupported("fixed-width column", dtype.String())
	}
	if data.Len() < n*dtype.ID.ByteWidth() {
		return nil, errors.Newf(errors.ErrorTypeSizeMismatch, "data buffer holds %d bytes, need %d", data.Len(), n*dtype.ID.ByteWidth())
	}
	return newColumn(dtype, n, data, nil, validity)
}

// NewString wraps n+1 int32 offsets and the character bytes. The column
// takes ownership of offsets, chars and validity.
func NewString(n int, offsets, chars *memory.Buffer, validity *bitmask.Bitmap) (*Column, error) {
	if offsets.Len() < (n+1)*4 {
		return nil, errors.Newf(errors.ErrorTypeSizeMismatch, "offsets buffer holds %d bytes, need %d", offsets.Len(), (n+1)*4)
	}
	offs := unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(offsets.Bytes()))), n+1)
	if offs[0] != 0 || int(offs[n]) != chars.Len() {
		return nil, errors.Newf(errors.ErrorTypeSizeMismatch, "offsets span [%d, %d] does not match %d character bytes", offs[0], offs[n], chars.Len())
	}
	return newColumn(Type(String), n, chars, offsets, validity)
}

func newColumn(dtype DataType, n int, data, offsets *memory.Buffer, validity *bitmask.Bitmap) (*Column, error) {
	c := &Column{dtype: dtype, length: n, data: data, offsets: offsets, validity: validity}
	if validity != nil {
		if validity.Len() != n {
			return nil, errors.Newf(errors.ErrorTypeSizeMismatch, "validity covers %d elements, column has %d", validity.Len(), n)
		}
		c.nullCount = validity.NullCount()
	}
	return c, nil
}

// Type returns the data type
func (c *Column) Type() DataType { return c.dtype }

// Len returns the number of elements
func (c *Column) Len() int { return c.length }

// NullCount returns the number of null elements
func (c *Column) NullCount() int { return c.nullCount }

// Nullable reports whether the column carries a validity bitmap.
func (c *Column) Nullable() bool { return c.validity != nil }

// Validity returns the validity bitmap, nil when every element is valid.
func (c *Column) Validity() *bitmask.Bitmap { return c.validity }

// IsValid reports whether element i holds a value.
func (c *Column) IsValid(i int) bool {
	return c.validity == nil || c.validity.Get(i)
}

// IsNull reports whether element i is null.
func (c *Column) IsNull(i int) bool { return !c.IsValid(i) }

// Data returns the element buffer (characters for strings).
func (c *Column) Data() *memory.Buffer { return c.data }

// OffsetsBuffer returns the offsets buffer of a string column, nil otherwise.
func (c *Column) OffsetsBuffer() *memory.Buffer { return c.offsets }

// Offsets returns the n+1 offsets of a string column.
func (c *Column) Offsets() []int32 {
	if c.offsets == nil {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(c.offsets.Bytes()))), c.length+1)
}

// Chars returns the character bytes of a string column.
func (c *Column) Chars() []byte {
	return c.data.Bytes()
}

// StringBytes returns the bytes of element i of a string column without copying.
func (c *Column) StringBytes(i int) []byte {
	offs := c.Offsets()
	return c.data.Bytes()[offs[i]:offs[i+1]]
}

// Retain increases the reference count of every buffer.
func (c *Column) Retain() {
	c.data.Retain()
	if c.offsets != nil {
		c.offsets.Retain()
	}
	if c.validity != nil {
		c.validity.Retain()
	}
}

// Release decreases the reference count of every buffer.
func (c *Column) Release() {
	if c == nil {
		return
	}
	c.data.Release()
	if c.offsets != nil {
		c.offsets.Release()
	}
	c.validity.Release()
}

// SizeInBytes returns the bytes held by the column's buffers.
func (c *Column) SizeInBytes() int {
	size := c.data.Len()
	if c.offsets != nil {
		size += c.offsets.Len()
	}
	if c.validity != nil {
		size += bitmask.SizeInBytes(c.validity.Len())
	}
	return size
}

// Copy returns a deep copy allocated from mem.
func (c *Column) Copy(mem memory.Allocator) *Column {
	out := &Column{
		dtype:     c.dtype,
		length:    c.length,
		data:      copyBuffer(mem, c.data),
		nullCount: c.nullCount,
	}
	if c.offsets != nil {
		out.offsets = copyBuffer(mem, c.offsets)
	}
	if c.validity != nil {
		out.validity = c.validity.Clone(mem)
	}
	return out
}

func copyBuffer(mem memory.Allocator, src *memory.Buffer) *memory.Buffer {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(src.Len())
	copy(buf.Bytes(), src.Bytes())
	return buf
}

// Values returns a view of the elements of a fixed-width column as T.
// T must have the byte width of the column type.
func Values[T Native](c *Column) []T {
	if sizeOf[T]() != c.dtype.ID.ByteWidth() {
		panic(fmt.Sprintf("column: %s elements viewed with a %d byte type", c.dtype, sizeOf[T]()))
	}
	return BufferValues[T](c.data, c.length)
}

// BufferValues views the first n elements of buf as T.
func BufferValues[T Native](buf *memory.Buffer, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf.Bytes()))), n)
}
