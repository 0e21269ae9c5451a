// Package column provides the immutable columns and tables stratum kernels
// read and produce.
package column

import (
	"fmt"
	"unsafe"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// TypeID identifies the element type of a column
type TypeID int

const (
	Bool TypeID = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Decimal32
	Decimal64
	String
)

var typeNames = [...]string{
	Bool:      "bool",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Uint8:     "uint8",
	Uint16:    "uint16",
	Uint32:    "uint32",
	Uint64:    "uint64",
	Float32:   "float32",
	Float64:   "float64",
	Decimal32: "decimal32",
	Decimal64: "decimal64",
	String:    "string",
}

func (t TypeID) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseTypeID returns the type named s.
func ParseTypeID(s string) (TypeID, error) {
	for id, name := range typeNames {
		if name == s {
			return TypeID(id), nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeValidation, "unknown type %q", s)
}

// ByteWidth returns the size of one element, 0 for strings
func (t TypeID) ByteWidth() int {
	switch t {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32, Decimal32:
		return 4
	case Int64, Uint64, Float64, Decimal64:
		return 8
	default:
		return 0
	}
}

func (t TypeID) IsFixedWidth() bool { return t != String && t.ByteWidth() > 0 }
func (t TypeID) IsFloat() bool      { return t == Float32 || t == Float64 }
func (t TypeID) IsDecimal() bool    { return t == Decimal32 || t == Decimal64 }

// IsInteger reports whether t is a signed or unsigned integer type.
func (t TypeID) IsInteger() bool {
	return t >= Int8 && t <= Uint64
}

// IsSigned reports whether t is a signed integer type.
func (t TypeID) IsSigned() bool {
	return t >= Int8 && t <= Int64
}

// DataType is a type id plus the scale of fixed-point types
type DataType struct {
	ID TypeID
	// Scale applies to Decimal32/Decimal64: value = unscaled * 10^-Scale
	Scale int32
}

// Type returns the DataType of a non-decimal type id.
func Type(id TypeID) DataType { return DataType{ID: id} }

// Decimal returns a fixed-point DataType.
func Decimal(id TypeID, scale int32) DataType { return DataType{ID: id, Scale: scale} }

func (d DataType) String() string {
	if d.ID.IsDecimal() {
		return fmt.Sprintf("%s(scale=%d)", d.ID, d.Scale)
	}
	return d.ID.String()
}

// Native is the set of Go types backing fixed-width columns. Decimal32 and
// Decimal64 are backed by int32 and int64, Bool by uint8.
type Native interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// TypeOf returns the natural TypeID for the Go type T.
func TypeOf[T Native]() TypeID {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	panic(fmt.Sprintf("column: no type id for %T", zero))
}

func sizeOf[T Native]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
