// ABOUTME: Outcome of one submitted payload and the future that delivers it
// ABOUTME: A future completes exactly once; readers block until then or until their context ends

package pipeline

import (
	"context"
	"slices"
	"sync"

	"github.com/harper/rpc-engine/internal/jsonrpc"
)

// Result is the outcome of one payload: a single response or an ordered
// batch of them, plus the serialized text a server writes back.
type Result struct {
	hasError  bool
	batch     bool
	response  jsonrpc.Response
	responses []jsonrpc.Response
	text      string
}

// HasError is true when the item failed or, for a batch, any child did.
func (r Result) HasError() bool { return r.hasError }
func (r Result) IsBatch() bool  { return r.batch }

// Response is the single response. It is the zero Response for a batch.
func (r Result) Response() jsonrpc.Response { return r.response }

// Batch returns the child responses in input order.
func (r Result) Batch() []jsonrpc.Response { return slices.Clone(r.responses) }

// Text is the wire form. It is empty for notification successes and in the
// client role.
func (r Result) Text() string { return r.text }

// Future resolves to the Result of a submitted payload.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(r Result) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Get blocks until the result is available.
func (f *Future) Get() Result {
	<-f.done
	return f.result
}

// Wait is Get bounded by ctx.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
