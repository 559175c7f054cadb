package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	d := dispatcher.New()
	require.NoError(t, d.AddMethod("add", func(a, b int32) int32 { return a + b }))
	require.NoError(t, d.AddMethod("touch", func() {}))
	opts = append([]Option{WithIdleTimeout(20 * time.Millisecond)}, opts...)
	return NewServer(d, opts...)
}

func await(t *testing.T, f *Future) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err, "future did not complete")
	return res
}

func TestServerCall(t *testing.T) {
	s := newTestServer(t)

	res := await(t, s.Submit(`{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`))
	assert.False(t, res.HasError())
	assert.False(t, res.IsBatch())
	assert.Equal(t, `{"jsonrpc":"2.0","result":5,"id":1}`, res.Text())
	assert.True(t, value.Equal(value.Int32(5), res.Response().Value()))
}

func TestServerMethodNotFound(t *testing.T) {
	s := newTestServer(t)

	res := await(t, s.Submit(`{"jsonrpc":"2.0","method":"missing","id":7}`))
	assert.True(t, res.HasError())
	assert.Equal(t, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found."},"id":7}`, res.Text())
}

func TestServerNotifications(t *testing.T) {
	s := newTestServer(t)

	res := await(t, s.Submit(`{"jsonrpc":"2.0","method":"touch"}`))
	assert.False(t, res.HasError())
	assert.Empty(t, res.Text())

	res = await(t, s.Submit(`{"jsonrpc":"2.0","method":"missing"}`))
	assert.True(t, res.HasError())
	assert.Equal(t, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found."},"id":null}`, res.Text())
}

func TestServerRejectsInvalidPayloads(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		payload string
		text    string
	}{
		{`{bad`, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"JSON parse error.","data":"Request parse error."},"id":null}`},
		{`[]`, `{"jsonrpc":"2.0","error":{"code":-32600,"message":"Invalid request.","data":"Request was not an object."},"id":null}`},
		{`{"jsonrpc":"1.0","method":"add","id":4}`, `{"jsonrpc":"2.0","error":{"code":-32600,"message":"Invalid request.","data":"Invalid protocol version."},"id":4}`},
		{`{"jsonrpc":"2.0","method":"add","params":[1],"id":"p"}`, `{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid method parameters.","data":"Params length mismatch."},"id":"p"}`},
	}
	for _, tt := range tests {
		res := await(t, s.Submit(tt.payload))
		assert.True(t, res.HasError(), tt.payload)
		assert.Equal(t, tt.text, res.Text(), tt.payload)
	}
}

func TestServerBatch(t *testing.T) {
	s := newTestServer(t)

	res := await(t, s.Submit(`[
		{"jsonrpc":"2.0","method":"add","params":[1,2],"id":1},
		{"jsonrpc":"2.0","method":1,"id":2},
		{"jsonrpc":"2.0","method":"add","params":[3,4],"id":3}
	]`))

	assert.True(t, res.IsBatch())
	assert.True(t, res.HasError())

	batch := res.Batch()
	require.Len(t, batch, 3)
	assert.False(t, batch[0].HasError())
	assert.True(t, batch[1].HasError())
	assert.Equal(t, errors.CodeInvalidRequest, batch[1].Code())
	assert.True(t, value.Equal(value.Int32(2), batch[1].ID().Value()))
	assert.False(t, batch[2].HasError())
	assert.True(t, value.Equal(value.Int32(7), batch[2].Value()))

	assert.Equal(t, `[{"jsonrpc":"2.0","result":3,"id":1},`+
		`{"jsonrpc":"2.0","error":{"code":-32600,"message":"Invalid request.","data":"Invalid method value."},"id":2},`+
		`{"jsonrpc":"2.0","result":7,"id":3}]`, res.Text())
}

func TestServerBatchOfNotifications(t *testing.T) {
	s := newTestServer(t)

	res := await(t, s.Submit(`[{"jsonrpc":"2.0","method":"touch"},{"jsonrpc":"2.0","method":"touch"}]`))
	assert.True(t, res.IsBatch())
	assert.False(t, res.HasError())
	assert.Len(t, res.Batch(), 2)
	assert.Empty(t, res.Text())
}

func TestServerNestedBatchElement(t *testing.T) {
	s := newTestServer(t)

	res := await(t, s.Submit(`[[{"jsonrpc":"2.0","method":"touch"}]]`))
	require.Len(t, res.Batch(), 1)
	assert.Equal(t, errors.CodeInvalidRequest, res.Batch()[0].Code())
}

func TestServerFIFO(t *testing.T) {
	d := dispatcher.New()
	var mu sync.Mutex
	var seen []int32
	require.NoError(t, d.AddMethod("mark", func(n int32) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	}))
	s := NewServer(d, WithIdleTimeout(50*time.Millisecond))

	futures := make([]*Future, 100)
	for i := range futures {
		futures[i] = s.Submit(fmt.Sprintf(`{"jsonrpc":"2.0","method":"mark","params":[%d],"id":%d}`, i, i))
	}
	for _, f := range futures {
		await(t, f)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 100)
	for i, n := range seen {
		assert.Equal(t, int32(i), n)
	}
}

func TestWorkerRestartsAfterIdle(t *testing.T) {
	s := newTestServer(t, WithIdleTimeout(10*time.Millisecond))
	assert.Equal(t, Idle, s.State())

	await(t, s.Submit(`{"jsonrpc":"2.0","method":"touch"}`))
	require.Eventually(t, func() bool { return s.State() == Idle }, 2*time.Second, 5*time.Millisecond)

	res := await(t, s.Submit(`{"jsonrpc":"2.0","method":"add","params":[1,1],"id":1}`))
	assert.Equal(t, `{"jsonrpc":"2.0","result":2,"id":1}`, res.Text())
	assert.Equal(t, 2, s.worker.Starts())
}

func TestConcurrentSubmitAcrossShutdown(t *testing.T) {
	s := newTestServer(t, WithIdleTimeout(time.Millisecond))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				f := s.Submit(fmt.Sprintf(`{"jsonrpc":"2.0","method":"add","params":[%d,%d],"id":1}`, g, i))
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				res, err := f.Wait(ctx)
				cancel()
				if !assert.NoError(t, err, "item stranded") {
					return
				}
				assert.False(t, res.HasError())
				if i%10 == 0 {
					time.Sleep(2 * time.Millisecond)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestServersShareDispatcher(t *testing.T) {
	d := dispatcher.New()
	require.NoError(t, d.AddMethod("add", func(a, b int32) int32 { return a + b }))
	a := NewServer(d, WithName("a"))
	b := NewServer(d, WithName("b"))
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "a", a.Name())

	fa := a.Submit(`{"jsonrpc":"2.0","method":"add","params":[1,2],"id":1}`)
	fb := b.Submit(`{"jsonrpc":"2.0","method":"add","params":[3,4],"id":1}`)
	assert.Equal(t, `{"jsonrpc":"2.0","result":3,"id":1}`, await(t, fa).Text())
	assert.Equal(t, `{"jsonrpc":"2.0","result":7,"id":1}`, await(t, fb).Text())
}

type journalEntry struct {
	pipeline  string
	direction Direction
	payload   string
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func (j *memoryJournal) Record(pipelineID string, direction Direction, payload string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{pipelineID, direction, payload})
	return nil
}

func TestServerJournal(t *testing.T) {
	j := &memoryJournal{}
	s := newTestServer(t, WithJournal(j))

	call := `{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`
	note := `{"jsonrpc":"2.0","method":"touch"}`
	await(t, s.Submit(call))
	await(t, s.Submit(note))

	j.mu.Lock()
	defer j.mu.Unlock()
	assert.Equal(t, []journalEntry{
		{s.ID(), Inbound, call},
		{s.ID(), Outbound, `{"jsonrpc":"2.0","result":5,"id":1}`},
		{s.ID(), Inbound, note},
	}, j.entries)
}

func TestFutureWaitHonorsContext(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	f.complete(Result{text: "first"})
	f.complete(Result{text: "second"})
	assert.Equal(t, "first", f.Get().Text())
}
