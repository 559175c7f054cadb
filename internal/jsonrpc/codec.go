// ABOUTME: Parses and serializes JSON-RPC 2.0 requests, responses and batches
// ABOUTME: Validates every structural rule of the protocol in both directions

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/value"
)

const (
	memberVersion = "jsonrpc"
	memberMethod  = "method"
	memberParams  = "params"
	memberID      = "id"
	memberResult  = "result"
	memberError   = "error"
	memberCode    = "code"
	memberMessage = "message"
	memberData    = "data"
)

// decodeNode parses text into a generic tree, keeping numbers as json.Number.
func decodeNode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return nil, err
	}
	// a second document, or garbage, after the first is not valid JSON text
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewParseError("Trailing data after JSON value.")
	}
	return node, nil
}

func decodeObject(text, what string) (map[string]any, error) {
	node, err := decodeNode(text)
	if err != nil {
		if errors.Is(err, errors.KindParseError) {
			return nil, err
		}
		return nil, errors.Wrap(errors.KindParseError, err, what+" parse error.")
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, errors.NewInvalidRequestError(what + " was not an object.")
	}
	return obj, nil
}

func checkVersion(obj map[string]any) error {
	raw, ok := obj[memberVersion]
	if !ok {
		return errors.NewInvalidRequestError("Invalid protocol.")
	}
	version, ok := raw.(string)
	if !ok {
		return errors.NewInvalidRequestError("Invalid protocol.")
	}
	if version != Version {
		return errors.NewInvalidRequestError("Invalid protocol version.")
	}
	return nil
}

// decodeID accepts string, integer and null ids.
func decodeID(raw any) (ID, error) {
	switch x := raw.(type) {
	case nil:
		return NullID(), nil
	case string:
		return StringID(x), nil
	case json.Number:
		v, err := value.FromNode(x)
		if err != nil {
			return ID{}, errors.NewInvalidRequestError("Invalid id type.")
		}
		return IDFrom(v)
	}
	return ID{}, errors.NewInvalidRequestError("Invalid id type.")
}

// ParseRequest parses a single request object.
func ParseRequest(text string) (Request, error) {
	obj, err := decodeObject(text, "Request")
	if err != nil {
		return Request{}, err
	}
	if err := checkVersion(obj); err != nil {
		return Request{}, err
	}

	method, ok := obj[memberMethod].(string)
	if !ok || method == "" {
		return Request{}, errors.NewInvalidRequestError("Invalid method value.")
	}

	params := NoParams
	if raw, ok := obj[memberParams]; ok {
		switch raw.(type) {
		case []any, map[string]any:
		default:
			return Request{}, errors.NewInvalidRequestError("Params must be an array or object.")
		}
		v, err := value.FromNode(raw)
		if err != nil {
			return Request{}, errors.Wrap(errors.KindBadRequest, err, "Invalid params value.")
		}
		if arr, ok := v.AsArray(); ok {
			params = Positional(arr...)
		} else {
			m, _ := v.AsObject()
			params = Named(m)
		}
	}

	id := NoID
	if raw, ok := obj[memberID]; ok {
		if id, err = decodeID(raw); err != nil {
			return Request{}, err
		}
	}
	return NewRequest(method, id, params), nil
}

// ParseResponse parses a single response object.
func ParseResponse(text string) (Response, error) {
	obj, err := decodeObject(text, "Response")
	if err != nil {
		return Response{}, err
	}
	if err := checkVersion(obj); err != nil {
		return Response{}, err
	}

	rawID, ok := obj[memberID]
	if !ok {
		return Response{}, errors.NewInvalidRequestError("Missing response id.")
	}
	id, err := decodeID(rawID)
	if err != nil {
		return Response{}, err
	}

	rawResult, hasResult := obj[memberResult]
	rawError, hasError := obj[memberError]
	switch {
	case hasResult && hasError:
		return Response{}, errors.NewInvalidRequestError("Non-exclusive result.")
	case !hasResult && !hasError:
		return Response{}, errors.NewInvalidRequestError("Non-inclusive result.")
	case hasResult:
		result, err := value.FromNode(rawResult)
		if err != nil {
			return Response{}, errors.Wrap(errors.KindBadRequest, err, "Invalid result value.")
		}
		return NewResult(result, id), nil
	}

	errObj, ok := rawError.(map[string]any)
	if !ok {
		return Response{}, errors.NewInvalidRequestError("Error was not an object.")
	}
	code, err := decodeCode(errObj[memberCode])
	if err != nil {
		return Response{}, err
	}
	message, ok := errObj[memberMessage].(string)
	if !ok {
		return Response{}, errors.NewInvalidRequestError("Invalid error message value.")
	}
	var data value.Value
	if rawData, ok := errObj[memberData]; ok {
		if data, err = value.FromNode(rawData); err != nil {
			return Response{}, errors.Wrap(errors.KindBadRequest, err, "Invalid error data value.")
		}
	}
	return NewErrorResponse(code, message, data, id), nil
}

func decodeCode(raw any) (int, error) {
	num, ok := raw.(json.Number)
	if !ok {
		return 0, errors.NewInvalidRequestError("Invalid error code value.")
	}
	v, err := value.FromNode(num)
	if err != nil {
		return 0, errors.NewInvalidRequestError("Invalid error code value.")
	}
	n, ok := v.AsInt32()
	if !ok {
		return 0, errors.NewInvalidRequestError("Invalid error code value.")
	}
	return int(n), nil
}

// SplitBatch returns the text of each element when text is a JSON array.
// Any other top-level value yields an empty slice, meaning "not a batch".
func SplitBatch(text string) ([]string, error) {
	node, err := decodeNode(text)
	if err != nil {
		if errors.Is(err, errors.KindParseError) {
			return nil, err
		}
		return nil, errors.Wrap(errors.KindParseError, err, "Batch parse error.")
	}
	arr, ok := node.([]any)
	if !ok {
		return nil, nil
	}
	batch := make([]string, 0, len(arr))
	for _, elem := range arr {
		b, err := marshal(elem)
		if err != nil {
			return nil, errors.Wrap(errors.KindParseError, err, "Batch element parse error.")
		}
		batch = append(batch, string(b))
	}
	return batch, nil
}

// RecoverID makes a best-effort attempt to read the id of a payload that
// failed validation. It returns a null id when none can be read.
func RecoverID(text string) ID {
	node, err := decodeNode(text)
	if err != nil {
		return NullID()
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return NullID()
	}
	raw, ok := obj[memberID]
	if !ok {
		return NullID()
	}
	id, err := decodeID(raw)
	if err != nil {
		return NullID()
	}
	return id
}

// marshal encodes v without HTML escaping and without the encoder's newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func requestWire(r Request) (wireRequest, error) {
	if r.method == "" {
		return wireRequest{}, errors.NewInternalError("Request method was empty.")
	}
	w := wireRequest{JSONRPC: Version, Method: r.method}
	if r.HasParams() {
		params := r.params.Value()
		w.Params = &params
	}
	if !r.IsNotification() {
		id := r.id.Value()
		w.ID = &id
	}
	return w, nil
}

// responseWire returns nil for a notification success, which is never written.
func responseWire(r Response) any {
	if !r.failed {
		if r.IsNotification() {
			return nil
		}
		return wireSuccess{JSONRPC: Version, Result: r.result, ID: r.id.Value()}
	}
	w := wireFailure{
		JSONRPC: Version,
		Error:   wireError{Code: r.code, Message: r.message},
		// an absent id is reported as null
		ID: r.id.Value(),
	}
	if r.data.HasValue() {
		data := r.data
		w.Error.Data = &data
	}
	return w
}

// EncodeRequest serializes a request or notification.
func EncodeRequest(r Request) (string, error) {
	w, err := requestWire(r)
	if err != nil {
		return "", err
	}
	b, err := marshal(w)
	if err != nil {
		return "", errors.Wrap(errors.KindInternalError, err, "Request serialization failed.")
	}
	return string(b), nil
}

// EncodeResponse serializes a response. A notification success yields "".
func EncodeResponse(r Response) (string, error) {
	w := responseWire(r)
	if w == nil {
		return "", nil
	}
	b, err := marshal(w)
	if err != nil {
		return "", errors.Wrap(errors.KindInternalError, err, "Response serialization failed.")
	}
	return string(b), nil
}

// EncodeBatchRequest serializes a non-empty batch of requests.
func EncodeBatchRequest(reqs []Request) (string, error) {
	if len(reqs) == 0 {
		return "", errors.NewInternalError("Batch was empty.")
	}
	wires := make([]wireRequest, 0, len(reqs))
	for _, r := range reqs {
		w, err := requestWire(r)
		if err != nil {
			return "", err
		}
		wires = append(wires, w)
	}
	b, err := marshal(wires)
	if err != nil {
		return "", errors.Wrap(errors.KindInternalError, err, "Batch serialization failed.")
	}
	return string(b), nil
}

// EncodeBatchResponse serializes the responses that have a wire form.
// When every response answers a notification successfully the result is "".
func EncodeBatchResponse(resps []Response) (string, error) {
	wires := make([]any, 0, len(resps))
	for _, r := range resps {
		if w := responseWire(r); w != nil {
			wires = append(wires, w)
		}
	}
	if len(wires) == 0 {
		return "", nil
	}
	b, err := marshal(wires)
	if err != nil {
		return "", errors.Wrap(errors.KindInternalError, err, "Batch serialization failed.")
	}
	return string(b), nil
}
