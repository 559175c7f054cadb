// ABOUTME: Adapts native Go funcs and methods into type-erased handlers
// ABOUTME: Reflection covers any func shape, generic BindN helpers keep call sites typed

package dispatcher

import (
	"context"
	"fmt"
	"reflect"

	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/value"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// binding holds reflection data for a bound func.
type binding struct {
	fn        reflect.Value
	withCtx   bool
	in        []reflect.Type
	hasResult bool
	hasErr    bool
}

// bindFunc inspects fn. Valid signature:
//
//	func([ctx context.Context,] params...) ([result] [, error])
//
// where result is a type value.From accepts. Variadic funcs are rejected.
func bindFunc(fn any) (*binding, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, errors.NewInternalError(fmt.Sprintf("Cannot bind %T: not a func.", fn))
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, errors.NewInternalError(fmt.Sprintf("Cannot bind %s: variadic.", ft))
	}

	b := &binding{fn: rv}
	start := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		b.withCtx = true
		start = 1
	}
	for i := start; i < ft.NumIn(); i++ {
		b.in = append(b.in, ft.In(i))
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			b.hasErr = true
		} else {
			b.hasResult = true
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.NewInternalError(fmt.Sprintf("Cannot bind %s: second result must be error.", ft))
		}
		b.hasResult, b.hasErr = true, true
	default:
		return nil, errors.NewInternalError(fmt.Sprintf("Cannot bind %s: too many results.", ft))
	}
	if b.hasResult && !value.Supports(ft.Out(0)) {
		return nil, errors.NewInternalError(fmt.Sprintf("Cannot bind %s: unsupported result type.", ft))
	}
	return b, nil
}

func (b *binding) handler(conv *value.Registry) Handler {
	return func(ctx context.Context, params []value.Value) (value.Value, error) {
		args := make([]reflect.Value, 0, len(b.in)+1)
		if b.withCtx {
			args = append(args, reflect.ValueOf(&ctx).Elem())
		}
		for i, t := range b.in {
			arg, err := conv.Extract(params[i], t, true)
			if err != nil {
				return value.Null(), errors.Wrap(errors.KindBadParams, err, "Invalid param types.")
			}
			args = append(args, arg)
		}

		out := b.fn.Call(args)

		if b.hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return value.Null(), e.Interface().(error)
			}
		}
		if !b.hasResult {
			return value.Null(), nil
		}
		return wrapResult(out[0].Interface())
	}
}

func wrapResult(native any) (value.Value, error) {
	v, err := value.From(native)
	if err != nil {
		return value.Null(), errors.Wrap(errors.KindInternalError, err, "Result conversion failed.")
	}
	return v, nil
}

func param[T any](conv *value.Registry, v value.Value) (T, error) {
	out, err := value.Convert[T](conv, v)
	if err != nil {
		return out, errors.Wrap(errors.KindBadParams, err, "Invalid param types.")
	}
	return out, nil
}

func bound[R any](r R, err error) (value.Value, error) {
	if err != nil {
		return value.Null(), err
	}
	return wrapResult(r)
}

// Bind0 registers a typed func taking no params.
func Bind0[R any](d *Dispatcher, name string, fn func(context.Context) (R, error)) error {
	return d.add(&method{name: name, arity: 0, handler: func(ctx context.Context, _ []value.Value) (value.Value, error) {
		return bound(fn(ctx))
	}})
}

// Bind1 registers a typed func taking one param.
func Bind1[A, R any](d *Dispatcher, name string, fn func(context.Context, A) (R, error)) error {
	conv := d.converters
	return d.add(&method{name: name, arity: 1, handler: func(ctx context.Context, p []value.Value) (value.Value, error) {
		a, err := param[A](conv, p[0])
		if err != nil {
			return value.Null(), err
		}
		return bound(fn(ctx, a))
	}})
}

// Bind2 registers a typed func taking two params.
func Bind2[A, B, R any](d *Dispatcher, name string, fn func(context.Context, A, B) (R, error)) error {
	conv := d.converters
	return d.add(&method{name: name, arity: 2, handler: func(ctx context.Context, p []value.Value) (value.Value, error) {
		a, err := param[A](conv, p[0])
		if err != nil {
			return value.Null(), err
		}
		b, err := param[B](conv, p[1])
		if err != nil {
			return value.Null(), err
		}
		return bound(fn(ctx, a, b))
	}})
}

// Bind3 registers a typed func taking three params.
func Bind3[A, B, C, R any](d *Dispatcher, name string, fn func(context.Context, A, B, C) (R, error)) error {
	conv := d.converters
	return d.add(&method{name: name, arity: 3, handler: func(ctx context.Context, p []value.Value) (value.Value, error) {
		a, err := param[A](conv, p[0])
		if err != nil {
			return value.Null(), err
		}
		b, err := param[B](conv, p[1])
		if err != nil {
			return value.Null(), err
		}
		c, err := param[C](conv, p[2])
		if err != nil {
			return value.Null(), err
		}
		return bound(fn(ctx, a, b, c))
	}})
}

// Register adds every exported method of receiver with a bindable signature.
// The namespace prefixes all method names ("math" + "Add" -> "math.Add"); an
// empty namespace uses the method names directly. Either all of them are
// registered or, on a name collision, none.
func (d *Dispatcher) Register(namespace string, receiver any) error {
	rv := reflect.ValueOf(receiver)
	if !rv.IsValid() {
		return errors.NewInternalError("Receiver is nil.")
	}
	rt := rv.Type()

	var ms []*method
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if !m.IsExported() {
			continue
		}
		b, err := bindFunc(rv.Method(i).Interface())
		if err != nil {
			continue
		}
		name := m.Name
		if namespace != "" {
			name = namespace + "." + name
		}
		ms = append(ms, &method{name: name, arity: len(b.in), handler: b.handler(d.converters)})
	}
	if len(ms) == 0 {
		return errors.NewInternalError(fmt.Sprintf("Receiver %s has no bindable methods.", rt))
	}
	return d.add(ms...)
}
