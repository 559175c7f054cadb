// ABOUTME: Client role: builds request texts and parses the responses that come back
// ABOUTME: A well-formed error response is a successful parse flagged as an error

package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/jsonrpc"
	"github.com/harper/rpc-engine/internal/value"
)

// Client parses response payloads received from a peer.
type Client struct {
	*pipeline
}

func NewClient(opts ...Option) *Client {
	c := &Client{pipeline: newPipeline("client", opts)}
	c.single = c.processResponse
	return c
}

func (c *Client) processResponse(_ context.Context, payload string) Result {
	resp, err := jsonrpc.ParseResponse(payload)
	if err != nil {
		c.log.Debug("rejected response: %v", err)
		return c.failure(err, jsonrpc.RecoverID(payload))
	}
	return Result{hasError: resp.HasError(), response: resp}
}

// NewID returns a fresh string id.
func (c *Client) NewID() jsonrpc.ID {
	return jsonrpc.StringID(uuid.NewString())
}

func positionalParams(args []any) (jsonrpc.Params, error) {
	if len(args) == 0 {
		return jsonrpc.NoParams, nil
	}
	vs := make([]value.Value, len(args))
	for i, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			return jsonrpc.NoParams, errors.Wrap(errors.KindBadParams, err, fmt.Sprintf("Param %d has no wire form.", i))
		}
		vs[i] = v
	}
	return jsonrpc.Positional(vs...), nil
}

func namedParams(args map[string]any) (jsonrpc.Params, error) {
	vs := make(map[string]value.Value, len(args))
	for k, arg := range args {
		v, err := value.From(arg)
		if err != nil {
			return jsonrpc.NoParams, errors.Wrap(errors.KindBadParams, err, fmt.Sprintf("Param %q has no wire form.", k))
		}
		vs[k] = v
	}
	return jsonrpc.Named(vs), nil
}

func (c *Client) encode(method string, id jsonrpc.ID, params jsonrpc.Params, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return jsonrpc.EncodeRequest(jsonrpc.NewRequest(method, id, params))
}

// NewRequest serializes a call with positional params. No params omits the
// params member.
func (c *Client) NewRequest(method string, id jsonrpc.ID, params ...any) (string, error) {
	p, err := positionalParams(params)
	return c.encode(method, id, p, err)
}

// NewNamedRequest serializes a call with named params.
func (c *Client) NewNamedRequest(method string, id jsonrpc.ID, params map[string]any) (string, error) {
	p, err := namedParams(params)
	return c.encode(method, id, p, err)
}

// NewNotification serializes a notification with positional params.
func (c *Client) NewNotification(method string, params ...any) (string, error) {
	p, err := positionalParams(params)
	return c.encode(method, jsonrpc.NoID, p, err)
}

// NewNamedNotification serializes a notification with named params.
func (c *Client) NewNamedNotification(method string, params map[string]any) (string, error) {
	p, err := namedParams(params)
	return c.encode(method, jsonrpc.NoID, p, err)
}

// NewBatch combines request texts, as built by the other builders, into one
// batch text. Each text is validated again.
func (c *Client) NewBatch(requests ...string) (string, error) {
	reqs := make([]jsonrpc.Request, 0, len(requests))
	for _, text := range requests {
		req, err := jsonrpc.ParseRequest(text)
		if err != nil {
			return "", err
		}
		reqs = append(reqs, req)
	}
	return jsonrpc.EncodeBatchRequest(reqs)
}
