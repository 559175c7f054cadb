// ABOUTME: Converter registry consulted when a typed extraction has no direct representation
// ABOUTME: Conversions are keyed by (stored type, target type) and registered explicitly

package value

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrBadAlternative means the stored alternative is not the requested type
	// and no conversion was available.
	ErrBadAlternative = errors.New("bad alternative")
	// ErrBadConvert means a registered conversion rejected its input.
	ErrBadConvert = errors.New("bad convert")
	// ErrDuplicateConverter is returned when a (from, to) pair is registered twice.
	ErrDuplicateConverter = errors.New("converter already registered")
	// ErrNotStoredType is returned when a converter's source is not a stored alternative.
	ErrNotStoredType = errors.New("converter source is not a stored type")
)

var (
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	arrayType  = reflect.TypeOf([]Value(nil))
	objectType = reflect.TypeOf(map[string]Value(nil))
)

// storedTypes are the Go types a Value can physically hold, indexed by Kind.
var storedTypes = map[Kind]reflect.Type{
	KindBool:   reflect.TypeOf(false),
	KindInt32:  reflect.TypeOf(int32(0)),
	KindInt64:  reflect.TypeOf(int64(0)),
	KindDouble: reflect.TypeOf(float64(0)),
	KindString: reflect.TypeOf(""),
	KindArray:  arrayType,
	KindObject: objectType,
}

func isStoredType(t reflect.Type) bool {
	for _, st := range storedTypes {
		if st == t {
			return true
		}
	}
	return false
}

type convKey struct {
	from reflect.Type
	to   reflect.Type
}

type convertFunc func(any) (any, error)

// Registry holds conversion functions. A nil *Registry performs no conversions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[convKey]convertFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[convKey]convertFunc)}
}

// Register adds a conversion from the stored type From to the native type To.
func Register[From, To any](r *Registry, fn func(From) (To, error)) error {
	from := reflect.TypeOf((*From)(nil)).Elem()
	to := reflect.TypeOf((*To)(nil)).Elem()
	if !isStoredType(from) {
		return fmt.Errorf("%w: %s", ErrNotStoredType, from)
	}
	key := convKey{from: from, to: to}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[key]; exists {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateConverter, from, to)
	}
	r.funcs[key] = func(in any) (any, error) {
		return fn(in.(From))
	}
	return nil
}

// MustRegister is Register for startup code; it panics on error.
func MustRegister[From, To any](r *Registry, fn func(From) (To, error)) {
	if err := Register(r, fn); err != nil {
		panic(err)
	}
}

// Has reports whether a conversion from the stored type to the target exists.
func (r *Registry) Has(from, to reflect.Type) bool {
	_, ok := r.lookup(from, to)
	return ok
}

func (r *Registry) lookup(from, to reflect.Type) (convertFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[convKey{from: from, to: to}]
	return fn, ok
}

// Extract returns v as a reflect.Value of type t. Direct matches need no
// conversion; otherwise, when allowConversion is set, the registry is consulted.
func (r *Registry) Extract(v Value, t reflect.Type, allowConversion bool) (reflect.Value, error) {
	if t == valueType {
		return reflect.ValueOf(v), nil
	}
	if v.kind == KindNull {
		return extractNull(t)
	}

	stored := storedTypes[v.kind]
	if stored == t {
		return reflect.ValueOf(v.copyOut()), nil
	}
	if t.Kind() == reflect.Interface && stored.Implements(t) {
		out := reflect.New(t).Elem()
		if t == anyType {
			out.Set(reflect.ValueOf(v.Native()))
		} else {
			out.Set(reflect.ValueOf(v.copyOut()))
		}
		return out, nil
	}

	if allowConversion {
		if fn, ok := r.lookup(stored, t); ok {
			out, err := fn(v.copyOut())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %s -> %s: %w", ErrBadConvert, v.kind, t, err)
			}
			if rv := reflect.ValueOf(out); rv.IsValid() {
				return rv, nil
			}
			return reflect.Zero(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot extract %s as %s", ErrBadAlternative, v.kind, t)
}

// extractNull maps null onto nilable targets. Null has no stored type, so
// it never reaches the registry.
func extractNull(t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
		return reflect.Zero(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot extract null as %s", ErrBadAlternative, t)
}

func (v Value) copyOut() any {
	switch v.kind {
	case KindArray:
		a, _ := v.AsArray()
		return a
	case KindObject:
		m, _ := v.AsObject()
		return m
	}
	return v.v
}

// Get extracts v as T without conversion.
func Get[T any](v Value) (T, error) {
	return extract[T](nil, v, false)
}

// Convert extracts v as T, consulting r when the stored alternative is not T.
func Convert[T any](r *Registry, v Value) (T, error) {
	return extract[T](r, v, true)
}

func extract[T any](r *Registry, v Value, allowConversion bool) (T, error) {
	var zero T
	rv, err := r.Extract(v, reflect.TypeOf((*T)(nil)).Elem(), allowConversion)
	if err != nil {
		return zero, err
	}
	out, ok := rv.Interface().(T)
	if !ok {
		// nil interface or pointer
		return zero, nil
	}
	return out, nil
}
