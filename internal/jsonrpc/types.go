// ABOUTME: JSON-RPC 2.0 message types built on the value model
// ABOUTME: Implements request, response, id and params structures with exclusive shapes

package jsonrpc

import (
	"fmt"
	"maps"
	"slices"

	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/value"
)

const Version = "2.0"

// ID is a request identifier: absent, null, a string or an integer.
// The zero ID is absent.
type ID struct {
	present bool
	v       value.Value
}

// NoID marks a notification.
var NoID = ID{}

func NullID() ID             { return ID{present: true} }
func StringID(s string) ID   { return ID{present: true, v: value.String(s)} }
func IntID(n int64) ID       { return ID{present: true, v: value.Int(n)} }
func (id ID) IsAbsent() bool { return !id.present }
func (id ID) IsNull() bool   { return id.present && !id.v.HasValue() }
func (id ID) Value() value.Value {
	return id.v
}

// IDFrom accepts null, string and integer values.
func IDFrom(v value.Value) (ID, error) {
	switch v.Kind() {
	case value.KindNull, value.KindString, value.KindInt32, value.KindInt64:
		return ID{present: true, v: v}, nil
	}
	return ID{}, errors.NewInvalidRequestError("Invalid id type.")
}

func (id ID) String() string {
	if !id.present {
		return "<none>"
	}
	return id.v.String()
}

type paramsShape int

const (
	shapeNone paramsShape = iota
	shapePositional
	shapeNamed
)

// Params holds either positional or named parameters, never both.
type Params struct {
	shape      paramsShape
	positional []value.Value
	named      map[string]value.Value
}

// NoParams omits the params member.
var NoParams = Params{}

func Positional(vs ...value.Value) Params {
	return Params{shape: shapePositional, positional: slices.Clone(vs)}
}

func Named(m map[string]value.Value) Params {
	return Params{shape: shapeNamed, named: maps.Clone(m)}
}

func (p Params) IsAbsent() bool { return p.shape == shapeNone }
func (p Params) IsNamed() bool  { return p.shape == shapeNamed }
func (p Params) Positional() []value.Value {
	return slices.Clone(p.positional)
}
func (p Params) Named() map[string]value.Value {
	return maps.Clone(p.named)
}

// Len is the number of parameters in either shape.
func (p Params) Len() int {
	if p.shape == shapeNamed {
		return len(p.named)
	}
	return len(p.positional)
}

// Value renders the params as an array or object value, or null when absent.
func (p Params) Value() value.Value {
	switch p.shape {
	case shapePositional:
		return value.Array(p.positional...)
	case shapeNamed:
		return value.Object(p.named)
	}
	return value.Null()
}

// Request is a call (id present) or a notification (id absent).
type Request struct {
	method string
	params Params
	id     ID
}

// NewRequest builds a call. NoID turns it into a notification.
func NewRequest(method string, id ID, params Params) Request {
	return Request{method: method, params: params, id: id}
}

// NewNotification builds a request that expects no response.
func NewNotification(method string, params Params) Request {
	return Request{method: method, params: params}
}

func (r Request) Method() string       { return r.method }
func (r Request) Params() Params       { return r.params }
func (r Request) ID() ID               { return r.id }
func (r Request) IsNotification() bool { return r.id.IsAbsent() }
func (r Request) HasParams() bool      { return !r.params.IsAbsent() }
func (r Request) HasNamedParams() bool { return r.params.IsNamed() }

func (r Request) String() string {
	return fmt.Sprintf("request(method=%s id=%s params=%s)", r.method, r.id, r.params.Value())
}

// Response is a success carrying a result or a failure carrying an error
// object. A response without id answers a notification.
type Response struct {
	failed  bool
	result  value.Value
	code    int
	message string
	data    value.Value
	id      ID
}

// NewResult builds a success response.
func NewResult(result value.Value, id ID) Response {
	return Response{result: result, id: id}
}

// NewNotificationResult builds the success response of a notification; it
// has no wire representation.
func NewNotificationResult(result value.Value) Response {
	return Response{result: result}
}

// NewErrorResponse builds a failure response. A null data value is omitted
// from the wire.
func NewErrorResponse(code int, message string, data value.Value, id ID) Response {
	return Response{failed: true, code: code, message: message, data: data, id: id}
}

// ErrorFrom converts any error into a failure response.
func ErrorFrom(err error, id ID) Response {
	code, message, data := errors.Classify(err)
	return NewErrorResponse(code, message, data, id)
}

func (r Response) ID() ID               { return r.id }
func (r Response) Value() value.Value   { return r.result }
func (r Response) HasError() bool       { return r.failed }
func (r Response) Code() int            { return r.code }
func (r Response) Message() string      { return r.message }
func (r Response) Data() value.Value    { return r.data }
func (r Response) HasData() bool        { return r.data.HasValue() }
func (r Response) IsNotification() bool { return r.id.IsAbsent() }

func (r Response) String() string {
	if r.failed {
		return fmt.Sprintf("response(id=%s error=%d %q)", r.id, r.code, r.message)
	}
	return fmt.Sprintf("response(id=%s result=%s)", r.id, r.result)
}

// Wire shapes fix the member order on output.
type wireRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	Method  string       `json:"method"`
	Params  *value.Value `json:"params,omitempty"`
	ID      *value.Value `json:"id,omitempty"`
}

type wireSuccess struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  value.Value `json:"result"`
	ID      value.Value `json:"id"`
}

type wireError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    *value.Value `json:"data,omitempty"`
}

type wireFailure struct {
	JSONRPC string      `json:"jsonrpc"`
	Error   wireError   `json:"error"`
	ID      value.Value `json:"id"`
}
