// ABOUTME: Method registry mapping JSON-RPC method names to type-erased handlers
// ABOUTME: Validates arity, translates named params and invokes handlers outside the lock

package dispatcher

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/jsonrpc"
	"github.com/harper/rpc-engine/internal/value"
)

// Handler is the type-erased form every registered method is reduced to.
type Handler func(ctx context.Context, params []value.Value) (value.Value, error)

// ParamNames maps a positional index to the name used by named params.
type ParamNames map[int]string

// variadic marks a raw handler that receives params of any length.
const variadic = -1

type method struct {
	name    string
	arity   int
	handler Handler
}

func (m *method) call(ctx context.Context, params []value.Value) (result value.Value, err error) {
	if m.arity != variadic && len(params) != m.arity {
		return value.Null(), errors.NewInvalidParamsError("Params length mismatch.")
	}
	defer func() {
		if r := recover(); r != nil {
			result = value.Null()
			err = errors.NewUnknownError(fmt.Sprint(r))
		}
	}()
	return m.handler(ctx, params)
}

// Dispatcher routes requests to registered methods. It is safe for
// concurrent registration and invocation.
type Dispatcher struct {
	mu         sync.RWMutex
	methods    map[string]*method
	mappings   map[string]ParamNames
	converters *value.Registry
}

type Option func(*Dispatcher)

// WithConverters sets the registry used to extract handler arguments. Without
// it arguments must match the stored alternative exactly.
func WithConverters(r *value.Registry) Option {
	return func(d *Dispatcher) {
		d.converters = r
	}
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		methods:  make(map[string]*method),
		mappings: make(map[string]ParamNames),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Converters returns the registry handlers extract their arguments with.
func (d *Dispatcher) Converters() *value.Registry {
	return d.converters
}

// add inserts methods atomically: either every name is free and all are
// stored, or nothing changes.
func (d *Dispatcher) add(ms ...*method) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range ms {
		if m.name == "" {
			return errors.NewInternalError("Method name is required.")
		}
		if _, exists := d.methods[m.name]; exists {
			return errors.NewMethodAlreadyBoundError("Method already bound.")
		}
	}
	for _, m := range ms {
		d.methods[m.name] = m
	}
	return nil
}

// AddHandler registers a raw handler. No arity check is applied.
func (d *Dispatcher) AddHandler(name string, h Handler) error {
	if h == nil {
		return errors.NewInternalError("Handler is required.")
	}
	return d.add(&method{name: name, arity: variadic, handler: h})
}

// AddMethod binds any func value under name. See bindFunc for the accepted
// signatures.
func (d *Dispatcher) AddMethod(name string, fn any) error {
	b, err := bindFunc(fn)
	if err != nil {
		return err
	}
	return d.add(&method{name: name, arity: len(b.in), handler: b.handler(d.converters)})
}

// Alias exposes an already registered method under another name.
func (d *Dispatcher) Alias(alias, target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.methods[target]
	if !ok {
		return errors.NewMethodNotFoundError()
	}
	if _, exists := d.methods[alias]; exists {
		return errors.NewMethodAlreadyBoundError("Method already bound.")
	}
	d.methods[alias] = m
	return nil
}

// AddParamMapping registers the index to name mapping used to reorder named
// params for method name.
func (d *Dispatcher) AddParamMapping(name string, names ParamNames) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.mappings[name]; exists {
		return errors.NewMethodAlreadyBoundError("Method params mapping already bound.")
	}
	if names == nil {
		names = ParamNames{}
	}
	d.mappings[name] = maps.Clone(names)
	return nil
}

// Has reports whether name is registered.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.methods[name]
	return ok
}

// Methods returns every registered name, aliases included, in sorted order.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.methods))
}

func (d *Dispatcher) lookup(req jsonrpc.Request) (*method, ParamNames, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.methods[req.Method()]
	if !ok {
		return nil, nil, false
	}
	if !req.HasNamedParams() {
		return m, nil, true
	}
	names, found := d.mappings[req.Method()]
	if !found {
		// aliases share the mapping of the method they point to
		names = d.mappings[m.name]
	}
	return m, names, true
}

// Invoke runs the method named by req. Failures are returned as errors whose
// kind determines the error response; the caller attaches the request id.
func (d *Dispatcher) Invoke(ctx context.Context, req jsonrpc.Request) (jsonrpc.Response, error) {
	m, names, ok := d.lookup(req)
	if !ok {
		return jsonrpc.Response{}, errors.NewMethodNotFoundError()
	}

	params, err := positional(req.Params(), names)
	if err != nil {
		return jsonrpc.Response{}, err
	}

	result, err := m.call(ctx, params)
	if err != nil {
		return jsonrpc.Response{}, err
	}
	if req.IsNotification() {
		return jsonrpc.NewNotificationResult(result), nil
	}
	return jsonrpc.NewResult(result, req.ID()), nil
}

// positional flattens params into call order.
func positional(p jsonrpc.Params, names ParamNames) ([]value.Value, error) {
	if !p.IsNamed() {
		return p.Positional(), nil
	}
	if names == nil {
		return nil, errors.NewInternalError("Params mapping not found.")
	}
	named := p.Named()
	out := make([]value.Value, len(named))
	for i := range out {
		key, ok := names[i]
		if !ok {
			return nil, errors.NewInternalError("Index not found.")
		}
		v, ok := named[key]
		if !ok {
			return nil, errors.NewInternalError("Param not found.")
		}
		out[i] = v
	}
	return out, nil
}
