// ABOUTME: Recursive dynamically-typed value model for JSON-RPC payloads
// ABOUTME: Immutable tagged union over null, bool, int32, int64, double, string, array and object

package value

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
)

// Kind identifies which alternative a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrUnsupportedType is returned by From for native types with no Value representation.
var ErrUnsupportedType = errors.New("unsupported native type")

// Value is an immutable JSON-RPC value. The zero Value is null.
//
// Containers are copied on the way in and on the way out, so a Value can be
// shared between goroutines without synchronization.
type Value struct {
	kind Kind
	v    any
}

// Valuer is implemented by native types that know how to represent themselves as a Value.
type Valuer interface {
	RPCValue() (Value, error)
}

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{kind: KindBool, v: b} }
func Int32(n int32) Value     { return Value{kind: KindInt32, v: n} }
func Int64(n int64) Value     { return Value{kind: KindInt64, v: n} }
func Double(f float64) Value  { return Value{kind: KindDouble, v: f} }
func String(s string) Value   { return Value{kind: KindString, v: s} }
func Array(vs ...Value) Value { return Value{kind: KindArray, v: slices.Clone(vs)} }

// Object builds an object value. Keys are unique by construction.
func Object(m map[string]Value) Value {
	return Value{kind: KindObject, v: maps.Clone(m)}
}

// Int picks Int32 when n fits in 32 bits and Int64 otherwise.
func Int(n int64) Value {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return Int32(int32(n))
	}
	return Int64(n)
}

// Uint follows Int, widening values beyond the int64 range to Double.
func Uint(n uint64) Value {
	if n > math.MaxInt64 {
		return Double(float64(n))
	}
	return Int(int64(n))
}

func (v Value) Kind() Kind { return v.kind }

// HasValue reports whether v holds anything other than null.
func (v Value) HasValue() bool { return v.kind != KindNull }

func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

func (v Value) AsInt32() (int32, bool) {
	n, ok := v.v.(int32)
	return n, ok
}

func (v Value) AsInt64() (int64, bool) {
	n, ok := v.v.(int64)
	return n, ok
}

func (v Value) AsDouble() (float64, bool) {
	f, ok := v.v.(float64)
	return f, ok
}

func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

func (v Value) AsArray() ([]Value, bool) {
	a, ok := v.v.([]Value)
	return slices.Clone(a), ok
}

func (v Value) AsObject() (map[string]Value, bool) {
	m, ok := v.v.(map[string]Value)
	return maps.Clone(m), ok
}

// Len returns the element count of an array or object and 0 otherwise.
func (v Value) Len() int {
	switch x := v.v.(type) {
	case []Value:
		return len(x)
	case map[string]Value:
		return len(x)
	}
	return 0
}

// Native converts v into plain Go values: nil, bool, int32, int64, float64,
// string, []any and map[string]any.
func (v Value) Native() any {
	switch x := v.v.(type) {
	case []Value:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e.Native()
		}
		return out
	case map[string]Value:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = e.Native()
		}
		return out
	}
	return v.v
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}

// Equal reports structural equality. Int32 and Int64 holding the same number
// are different alternatives and compare unequal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch x := a.v.(type) {
	case []Value:
		y := b.v.([]Value)
		return slices.EqualFunc(x, y, Equal)
	case map[string]Value:
		y := b.v.(map[string]Value)
		return maps.EqualFunc(x, y, Equal)
	case float64:
		y := b.v.(float64)
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	}
	return a.v == b.v
}

var (
	valueType  = reflect.TypeOf(Value{})
	valuerType = reflect.TypeOf((*Valuer)(nil)).Elem()
)

// From wraps a native Go value.
func From(native any) (Value, error) {
	switch x := native.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return Int(x), nil
	case int:
		return Int(int64(x)), nil
	case float64:
		return Double(x), nil
	case string:
		return String(x), nil
	case []Value:
		return Array(x...), nil
	case map[string]Value:
		return Object(x), nil
	}
	return fromReflect(reflect.ValueOf(native))
}

// MustFrom is From for literals known to be representable; it panics otherwise.
func MustFrom(native any) Value {
	v, err := From(native)
	if err != nil {
		panic(err)
	}
	return v
}

func fromReflect(rv reflect.Value) (Value, error) {
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}
	if rv.Type().Implements(valuerType) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null(), nil
		}
		return rv.Interface().(Valuer).RPCValue()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromReflect(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]Value, rv.Len())
		for i := range out {
			e, err := fromReflect(rv.Index(i))
			if err != nil {
				return Value{}, err
			}
			out[i] = e
		}
		return Value{kind: KindArray, v: out}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
		}
		if rv.IsNil() {
			return Null(), nil
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e, err := fromReflect(iter.Value())
			if err != nil {
				return Value{}, err
			}
			out[iter.Key().String()] = e
		}
		return Value{kind: KindObject, v: out}, nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

// Supports reports whether From accepts values of static type t.
func Supports(t reflect.Type) bool {
	return supports(t, 0)
}

func supports(t reflect.Type, depth int) bool {
	if depth > 32 {
		// recursive named types such as `type T []T`
		return true
	}
	if t == valueType || t.Implements(valuerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Interface:
		// checked dynamically by From
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return supports(t.Elem(), depth+1)
	case reflect.Map:
		return t.Key().Kind() == reflect.String && supports(t.Elem(), depth+1)
	}
	return false
}
