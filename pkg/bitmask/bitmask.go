// Package bitmask provides the validity bitmap shared by stratum columns.
//
// A Bitmap holds one bit per element, least significant bit first, where a
// set bit marks a valid (non-null) element. The packed layout is the Arrow
// validity layout, so bitmaps move to and from Arrow arrays without copying.
// Callers only see element-level operations; the words behind them stay
// private to this package.
//
// Writers running in parallel must own disjoint ranges that start on a
// multiple of 64 elements. Under that rule no two writers touch the same
// word.
package bitmask

import (
	"encoding/binary"
	"math/bits"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// WordBits is the number of elements covered by one bitmap word.
const WordBits = 64

// Bitmap is a reference counted validity bitmap of a fixed length.
type Bitmap struct {
	buf *memory.Buffer
	n   int
}

// SizeInBytes returns the bytes allocated for a bitmap of n elements:
// whole 64-bit words so word-wise scans never read past the buffer.
func SizeInBytes(n int) int {
	words := (n + WordBits - 1) / WordBits
	return words * 8
}

// New allocates a bitmap of n elements with every bit set to valid.
// Bits past n stay zero.
func New(mem memory.Allocator, n int, valid bool) *Bitmap {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(SizeInBytes(n))
	b := buf.Bytes()
	// allocators are not required to zero memory
	for i := range b {
		b[i] = 0
	}
	if valid && n > 0 {
		bitutil.SetBitsTo(b, 0, int64(n), true)
	}
	return &Bitmap{buf: buf, n: n}
}

// FromBools builds a bitmap from a host slice.
func FromBools(mem memory.Allocator, valid []bool) *Bitmap {
	bm := New(mem, len(valid), false)
	b := bm.buf.Bytes()
	for i, v := range valid {
		if v {
			bitutil.SetBit(b, i)
		}
	}
	return bm
}

// Len returns the number of elements covered.
func (b *Bitmap) Len() int {
	return b.n
}

// Get reports whether element i is valid.
func (b *Bitmap) Get(i int) bool {
	return bitutil.BitIsSet(b.buf.Bytes(), i)
}

// Set marks element i valid or null.
func (b *Bitmap) Set(i int, valid bool) {
	bitutil.SetBitTo(b.buf.Bytes(), i, valid)
}

// SetRange sets elements [start, start+length) to valid.
func (b *Bitmap) SetRange(start, length int, valid bool) {
	if length <= 0 {
		return
	}
	bitutil.SetBitsTo(b.buf.Bytes(), int64(start), int64(length), valid)
}

// Count returns the number of valid elements.
func (b *Bitmap) Count() int {
	if b.n == 0 {
		return 0
	}
	return bitutil.CountSetBits(b.buf.Bytes(), 0, b.n)
}

// NullCount returns the number of null elements.
func (b *Bitmap) NullCount() int {
	return b.n - b.Count()
}

// FindFirstUnset returns the index of the first null element, or Len()
// when every element is valid.
func (b *Bitmap) FindFirstUnset() int {
	data := b.buf.Bytes()
	fullWords := b.n / WordBits
	for w := 0; w < fullWords; w++ {
		word := binary.LittleEndian.Uint64(data[w*8:])
		if word != ^uint64(0) {
			return w*WordBits + bits.TrailingZeros64(^word)
		}
	}
	for i := fullWords * WordBits; i < b.n; i++ {
		if !bitutil.BitIsSet(data, i) {
			return i
		}
	}
	return b.n
}

// Clone returns a deep copy allocated from mem.
func (b *Bitmap) Clone(mem memory.Allocator) *Bitmap {
	out := New(mem, b.n, false)
	copy(out.buf.Bytes(), b.buf.Bytes()[:bitutil.BytesForBits(int64(b.n))])
	return out
}

// And clears every element of b that is null in other, over the first n
// elements. Elements from n on are left as they are.
func (b *Bitmap) And(other *Bitmap, n int) {
	if n <= 0 {
		return
	}
	out := b.buf.Bytes()
	bitutil.BitmapAnd(out, other.buf.Bytes(), 0, 0, out, 0, int64(n))
}

// Or marks valid every element of b that is valid in other, over the
// first n elements.
func (b *Bitmap) Or(other *Bitmap, n int) {
	if n <= 0 {
		return
	}
	out := b.buf.Bytes()
	bitutil.BitmapOr(out, other.buf.Bytes(), 0, 0, out, 0, int64(n))
}

// Buffer returns the packed buffer for zero-copy interop. The caller must
// Retain it to keep it beyond the bitmap's lifetime.
func (b *Bitmap) Buffer() *memory.Buffer {
	return b.buf
}

// Retain increases the reference count.
func (b *Bitmap) Retain() {
	b.buf.Retain()
}

// Release decreases the reference count, freeing the buffer at zero.
// Release on a nil bitmap is a no-op.
func (b *Bitmap) Release() {
	if b == nil || b.buf == nil {
		return
	}
	b.buf.Release()
}
