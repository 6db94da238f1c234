package value

import "fmt"

// Kind is the type of the payload held by a Value.
type Kind int

const (
	// Invalid is the kind of the zero Value.
	Invalid Kind = iota

	// Float64 is the kind of a 64-bit floating point value.
	Float64

	// Int32 is the kind of a 32-bit signed integer value.
	Int32

	// Bool is the kind of a boolean value.
	Bool

	// String is the kind of a string value.
	String

	// Float64Array is the kind of a slice of 64-bit floating point values.
	Float64Array

	// Int32Array is the kind of a slice of 32-bit signed integer values.
	Int32Array
)

var kindNames = map[Kind]string{
	Float64:      "float64",
	Int32:        "int32",
	Bool:         "boolean",
	String:       "string",
	Float64Array: "float64-array",
	Int32Array:   "int32-array",
}

// Kinds is the list of valid kinds, in declaration order.
var Kinds = []Kind{Float64, Int32, Bool, String, Float64Array, Int32Array}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}

	return fmt.Sprintf("invalid(%d)", int(k))
}

// IsValid returns true if k is one of the supported kinds.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind parses the name of a kind, as returned by Kind.String().
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}

	return Invalid, fmt.Errorf("unrecognized value kind: %q", s)
}

// MarshalText returns the name of the kind.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("can not marshal %s kind", k)
	}

	return []byte(k.String()), nil
}

// UnmarshalText parses the name of a kind.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = v
	return nil
}
