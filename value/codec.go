package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/louteranas/nomad-viewer/fault"
)

// envelope is the JSON representation of a Value.
type envelope struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON returns the JSON representation of v.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("can not marshal an invalid value")
	}

	data, err := json.Marshal(encodable(v.data))
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelope{v.kind, data})
}

// UnmarshalJSON populates v from its JSON representation.
//
// The payload must be consistent with the declared kind.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	if len(env.Value) == 0 {
		return fmt.Errorf("%s value has no payload", env.Kind)
	}

	x, err := decodePayload(env.Kind, env.Value)
	if err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Kind, err)
	}

	*v = x
	return nil
}

func decodePayload(k Kind, data json.RawMessage) (Value, error) {
	switch k {
	case Float64:
		var x jsonFloat
		if err := json.Unmarshal(data, &x); err != nil {
			return Value{}, err
		}
		return NewFloat64(float64(x)), nil
	case Int32:
		return decodeAs[int32](data)
	case Bool:
		return decodeAs[bool](data)
	case String:
		return decodeAs[string](data)
	case Float64Array:
		var x []jsonFloat
		if err := json.Unmarshal(data, &x); err != nil {
			return Value{}, err
		}
		a := make([]float64, len(x))
		for i, f := range x {
			a[i] = float64(f)
		}
		return Value{k, a}, nil
	case Int32Array:
		return decodeAs[[]int32](data)
	default:
		return Value{}, fmt.Errorf("unsupported kind %s", k)
	}
}

func decodeAs[T Native](data json.RawMessage) (Value, error) {
	var x T
	if err := json.Unmarshal(data, &x); err != nil {
		return Value{}, err
	}

	return Value{KindFor[T](), x}, nil
}

// jsonFloat is a float64 that can represent NaN and the infinities in JSON.
//
// Finite values are encoded as JSON numbers. Non-finite values are encoded as
// the strings "NaN", "+Inf" and "-Inf".
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	x := float64(f)

	switch {
	case math.IsNaN(x):
		return []byte(`"NaN"`), nil
	case math.IsInf(x, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(x, -1):
		return []byte(`"-Inf"`), nil
	default:
		return json.Marshal(x)
	}
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(data, []byte(`"`)) {
		var x float64
		if err := json.Unmarshal(data, &x); err != nil {
			return err
		}
		*f = jsonFloat(x)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "NaN":
		*f = jsonFloat(math.NaN())
	case "+Inf":
		*f = jsonFloat(math.Inf(1))
	case "-Inf":
		*f = jsonFloat(math.Inf(-1))
	default:
		return fmt.Errorf("%q is not a valid float64", s)
	}

	return nil
}

// encodable returns the payload in a form that encoding/json accepts.
func encodable(x interface{}) interface{} {
	switch x := x.(type) {
	case float64:
		return jsonFloat(x)
	case []float64:
		a := make([]jsonFloat, len(x))
		for i, f := range x {
			a[i] = jsonFloat(f)
		}
		return a
	default:
		return x
	}
}

// FromNative returns a Value of kind k built from a loosely-typed Go value,
// such as those produced by YAML or JSON decoders.
//
// Numbers are accepted for the numeric kinds only when they are exactly
// representable. Nothing is converted across kinds: a string is never parsed
// as a number, and a number is never formatted as a string.
func FromNative(k Kind, x interface{}) (Value, error) {
	switch k {
	case Float64:
		f, ok := toFloat64(x)
		if !ok {
			return Value{}, mismatchFor(k, x)
		}
		return NewFloat64(f), nil

	case Int32:
		i, ok := toInt32(x)
		if !ok {
			return Value{}, mismatchFor(k, x)
		}
		return NewInt32(i), nil

	case Bool:
		b, ok := x.(bool)
		if !ok {
			return Value{}, mismatchFor(k, x)
		}
		return NewBool(b), nil

	case String:
		s, ok := x.(string)
		if !ok {
			return Value{}, mismatchFor(k, x)
		}
		return NewString(s), nil

	case Float64Array:
		a, ok := toSlice(x, toFloat64)
		if !ok {
			return Value{}, mismatchFor(k, x)
		}
		return Value{k, a}, nil

	case Int32Array:
		a, ok := toSlice(x, toInt32)
		if !ok {
			return Value{}, mismatchFor(k, x)
		}
		return Value{k, a}, nil

	default:
		return Value{}, fmt.Errorf("unsupported kind %s", k)
	}
}

// Zero returns the zero payload of kind k.
func Zero(k Kind) Value {
	switch k {
	case Float64:
		return NewFloat64(0)
	case Int32:
		return NewInt32(0)
	case Bool:
		return NewBool(false)
	case String:
		return NewString("")
	case Float64Array:
		return NewFloat64Array([]float64{})
	case Int32Array:
		return NewInt32Array([]int32{})
	default:
		return Value{}
	}
}

func mismatchFor(k Kind, x interface{}) error {
	return fmt.Errorf(
		"%w: can not use %T as a %s value",
		fault.ErrTypeMismatch,
		x,
		k,
	)
}

func toFloat64(x interface{}) (float64, bool) {
	switch x := x.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt32(x interface{}) (int32, bool) {
	var i int64

	switch x := x.(type) {
	case int:
		i = int64(x)
	case int32:
		return x, true
	case int64:
		i = x
	case uint64:
		if x > math.MaxInt32 {
			return 0, false
		}
		i = int64(x)
	case float64:
		if x != math.Trunc(x) || x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		i = int64(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		i = n
	default:
		return 0, false
	}

	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}

	return int32(i), true
}

func toSlice[T float64 | int32](
	x interface{},
	conv func(interface{}) (T, bool),
) ([]T, bool) {
	switch x := x.(type) {
	case []T:
		return append([]T{}, x...), true

	case []interface{}:
		out := make([]T, len(x))
		for i, e := range x {
			v, ok := conv(e)
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true

	default:
		return nil, false
	}
}
