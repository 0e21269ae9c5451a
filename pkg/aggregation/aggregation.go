// Package aggregation defines the associative operators stratum scans and
// reductions are built from.
//
// Every operator has an identity element: combining the identity with any
// value yields that value. Kernels substitute the identity for null
// elements that must not contribute to a result.
package aggregation

import (
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/stratum/pkg/column"
	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Op identifies an aggregation operator
type Op int

const (
	// Sum adds values; identity 0
	Sum Op = iota
	// Min keeps the smaller value; identity is the largest value of the type
	Min
	// Max keeps the larger value; identity is the smallest value of the type
	Max
	// Product multiplies values; identity 1
	Product
)

var opNames = [...]string{Sum: "sum", Min: "min", Max: "max", Product: "product"}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
	return opNames[o]
}

// ParseOp returns the operator named s, ignoring case.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if strings.EqualFold(name, s) {
			return Op(op), nil
		}
	}
	return 0, errors.New(errors.ErrorTypeValidation, "unknown aggregation operator").
		WithDetail("operator", s)
}

// Validate reports whether op can aggregate elements of type id. Fixed
// point types reject Product, strings accept only Min and Max and Bool
// accepts nothing.
func Validate(id column.TypeID, op Op) error {
	if op < Sum || op > Product {
		return errors.New(errors.ErrorTypeValidation, "unknown aggregation operator").
			WithDetail("operator", int(op))
	}
	switch {
	case id == column.Bool:
		return errors.Unsupported(op.String(), id.String())
	case id.IsDecimal() && op == Product:
		return errors.Unsupported(op.String(), id.String())
	case id == column.String && op != Min && op != Max:
		return errors.Unsupported(op.String(), id.String())
	case id == column.String || id.IsFixedWidth():
		return nil
	}
	return errors.Unsupported(op.String(), id.String())
}

// Numeric is the set of element types the fixed-width operators combine.
type Numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Operator combines values of T with one of the four operators.
type Operator[T Numeric] struct {
	op       Op
	identity T
}

// NewOperator returns the operator op over T. Decimal columns use the
// operator of their backing integer type, which is exact for Sum, Min and
// Max because all values of a column share one scale.
func NewOperator[T Numeric](op Op) Operator[T] {
	return Operator[T]{op: op, identity: Identity[T](op)}
}

// Op returns the operator kind
func (o Operator[T]) Op() Op { return o.op }

// Identity returns the identity element
func (o Operator[T]) Identity() T { return o.identity }

// Combine returns a op b. Integer Sum and Product wrap on overflow.
func (o Operator[T]) Combine(a, b T) T {
	switch o.op {
	case Sum:
		return a + b
	case Min:
		if b < a {
			return b
		}
		return a
	case Max:
		if b > a {
			return b
		}
		return a
	default:
		return a * b
	}
}

// Identity returns the identity of op over T: 0 for Sum, 1 for Product,
// the largest value (+Inf for floats) for Min and the smallest value (-Inf
// for floats) for Max.
func Identity[T Numeric](op Op) T {
	switch op {
	case Sum:
		return 0
	case Product:
		return 1
	case Min:
		return upperBound[T]()
	default:
		return lowerBound[T]()
	}
}

func upperBound[T Numeric]() T {
	var zero T
	var v any
	switch any(zero).(type) {
	case int8:
		v = int8(math.MaxInt8)
	case int16:
		v = int16(math.MaxInt16)
	case int32:
		v = int32(math.MaxInt32)
	case int64:
		v = int64(math.MaxInt64)
	case uint8:
		v = uint8(math.MaxUint8)
	case uint16:
		v = uint16(math.MaxUint16)
	case uint32:
		v = uint32(math.MaxUint32)
	case uint64:
		v = uint64(math.MaxUint64)
	case float32:
		v = float32(math.Inf(1))
	case float64:
		v = math.Inf(1)
	}
	return v.(T)
}

func lowerBound[T Numeric]() T {
	var zero T
	var v any
	switch any(zero).(type) {
	case int8:
		v = int8(math.MinInt8)
	case int16:
		v = int16(math.MinInt16)
	case int32:
		v = int32(math.MinInt32)
	case int64:
		v = int64(math.MinInt64)
	case uint8, uint16, uint32, uint64:
		return 0
	case float32:
		v = float32(math.Inf(-1))
	case float64:
		v = math.Inf(-1)
	}
	return v.(T)
}
