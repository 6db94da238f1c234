// Package value provides Value, a tagged union holding a single property value
// or notification payload of one of the supported kinds.
package value

import (
	"fmt"
	"math"
	"slices"

	"github.com/louteranas/nomad-viewer/fault"
)

// Native is the set of Go types that a Value can hold.
type Native interface {
	float64 | int32 | bool | string | []float64 | []int32
}

// Value is an immutable tagged union of the supported kinds.
//
// The zero value is invalid. Values are constructed with Of() or the kind
// specific constructors, which guarantees that the tag and the payload are
// always consistent.
type Value struct {
	kind Kind
	data interface{}
}

// Of returns a Value holding x.
//
// Slices are copied, the Value never shares storage with the caller.
func Of[T Native](x T) Value {
	return Value{
		kind: KindFor[T](),
		data: clone(any(x)),
	}
}

// NewFloat64 returns a Value of kind Float64.
func NewFloat64(x float64) Value { return Of(x) }

// NewInt32 returns a Value of kind Int32.
func NewInt32(x int32) Value { return Of(x) }

// NewBool returns a Value of kind Bool.
func NewBool(x bool) Value { return Of(x) }

// NewString returns a Value of kind String.
func NewString(x string) Value { return Of(x) }

// NewFloat64Array returns a Value of kind Float64Array.
func NewFloat64Array(x []float64) Value { return Of(x) }

// NewInt32Array returns a Value of kind Int32Array.
func NewInt32Array(x []int32) Value { return Of(x) }

// KindFor returns the kind that corresponds to the Go type T.
func KindFor[T Native]() Kind {
	var zero T

	switch any(zero).(type) {
	case float64:
		return Float64
	case int32:
		return Int32
	case bool:
		return Bool
	case string:
		return String
	case []float64:
		return Float64Array
	default: // []int32
		return Int32Array
	}
}

// As returns the payload of v as a T.
//
// It returns a MismatchError if v does not hold a T. Values are never
// converted between kinds.
func As[T Native](v Value) (T, error) {
	x, ok := v.data.(T)
	if !ok {
		var zero T
		return zero, MismatchError{
			Want: KindFor[T](),
			Got:  v.kind,
		}
	}

	return clone(any(x)).(T), nil
}

// Kind returns the kind of the payload.
func (v Value) Kind() Kind {
	return v.kind
}

// IsValid returns true if v holds a payload.
func (v Value) IsValid() bool {
	return v.kind.IsValid()
}

// AsFloat64 returns the payload of a Float64 value.
func (v Value) AsFloat64() (float64, error) { return As[float64](v) }

// AsInt32 returns the payload of an Int32 value.
func (v Value) AsInt32() (int32, error) { return As[int32](v) }

// AsBool returns the payload of a Bool value.
func (v Value) AsBool() (bool, error) { return As[bool](v) }

// AsString returns the payload of a String value.
func (v Value) AsString() (string, error) { return As[string](v) }

// AsFloat64Array returns a copy of the payload of a Float64Array value.
func (v Value) AsFloat64Array() ([]float64, error) { return As[[]float64](v) }

// AsInt32Array returns a copy of the payload of an Int32Array value.
func (v Value) AsInt32Array() ([]int32, error) { return As[[]int32](v) }

// Expect returns a MismatchError if v is not of kind k.
func (v Value) Expect(k Kind) error {
	if v.kind != k {
		return MismatchError{Want: k, Got: v.kind}
	}

	return nil
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	return Value{
		kind: v.kind,
		data: clone(v.data),
	}
}

// Native returns a copy of the payload as its Go representation.
//
// It returns nil for the zero value.
func (v Value) Native() interface{} {
	return clone(v.data)
}

// Equal returns true if v and x are of the same kind and hold equal payloads.
//
// Unlike the == operator, NaN is equal to NaN.
func (v Value) Equal(x Value) bool {
	if v.kind != x.kind {
		return false
	}

	switch a := v.data.(type) {
	case float64:
		return sameFloat(a, x.data.(float64))
	case []float64:
		return slices.EqualFunc(a, x.data.([]float64), sameFloat)
	case []int32:
		return slices.Equal(a, x.data.([]int32))
	default:
		return v.data == x.data
	}
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func (v Value) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}

	if s, ok := v.data.(string); ok {
		return fmt.Sprintf("%s(%q)", v.kind, s)
	}

	return fmt.Sprintf("%s(%v)", v.kind, v.data)
}

// MismatchError is returned when a Value is used as a kind it does not hold.
type MismatchError struct {
	Want Kind
	Got  Kind
}

func (e MismatchError) Error() string {
	return fmt.Sprintf(
		"type mismatch: expected a %s value, got %s",
		e.Want,
		e.Got,
	)
}

// Unwrap returns fault.ErrTypeMismatch.
func (e MismatchError) Unwrap() error {
	return fault.ErrTypeMismatch
}

func clone(x interface{}) interface{} {
	switch x := x.(type) {
	case []float64:
		return slices.Clone(x)
	case []int32:
		return slices.Clone(x)
	default:
		return x
	}
}
