package workflow

import (
	"encoding/json"
	"fmt"
)

// ── Value ──────────────────────────────────────────────────
// Tagged value type underlying every record field and literal.
// Keeping the set of kinds closed makes the coercion rules total
// functions instead of runtime type inspection.

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// String returns the lowercase kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON-compatible scalar and
// structured kinds. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// String wraps a string as a Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a float64 as a Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps a bool as a Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Object wraps a field map as a Value.
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// Array wraps an ordered sequence as a Value.
func Array(vs []Value) Value { return Value{kind: KindArray, arr: vs} }

// Kind reports the variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload. Valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// BoolVal returns the bool payload. Valid only for KindBool.
func (v Value) BoolVal() bool { return v.b }

// Obj returns the object payload. Valid only for KindObject.
func (v Value) Obj() map[string]Value { return v.obj }

// Arr returns the array payload. Valid only for KindArray.
func (v Value) Arr() []Value { return v.arr }

// Equal reports deep equality between two Values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i, vv := range v.arr {
			if !vv.Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts a decoded JSON value (map[string]any / []any /
// float64 / string / bool / nil) into a tagged Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case bool:
		return Bool(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, vv := range t {
			m[k] = FromAny(vv)
		}
		return Object(m)
	case []any:
		vs := make([]Value, len(t))
		for i, vv := range t {
			vs[i] = FromAny(vv)
		}
		return Array(vs)
	case Value:
		return t
	default:
		// Unknown scalar types (e.g. []byte from a DB driver) are
		// carried as their string form.
		return String(fmt.Sprint(t))
	}
}

// ToAny converts a Value back into its natural JSON-interop form.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, vv := range v.obj {
			m[k] = vv.ToAny()
		}
		return m
	case KindArray:
		vs := make([]any, len(v.arr))
		for i, vv := range v.arr {
			vs[i] = vv.ToAny()
		}
		return vs
	}
	return nil
}

// MarshalJSON renders the Value in its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON decodes arbitrary JSON into the tagged form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}
