package methods

import (
	"context"
	"testing"
	"time"

	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/pipeline"
	"github.com/harper/rpc-engine/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *pipeline.Server {
	t.Helper()
	d := dispatcher.New(dispatcher.WithConverters(value.StandardRegistry()))
	require.NoError(t, Register(d))
	return pipeline.NewServer(d, pipeline.WithIdleTimeout(50*time.Millisecond))
}

func call(t *testing.T, s *pipeline.Server, payload string) pipeline.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := s.Submit(payload).Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestRegisterBindsNamespaces(t *testing.T) {
	d := dispatcher.New()
	require.NoError(t, Register(d))

	assert.Equal(t, []string{
		"echo.Concat", "echo.Echo", "echo.Reverse",
		"math.Add", "math.Div", "math.Mul", "math.Sub",
	}, d.Methods())

	err := Register(d)
	assert.True(t, errors.Is(err, errors.KindMethodAlreadyBound))
}

func TestMethodCalls(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"add", `{"jsonrpc":"2.0","method":"math.Add","params":[2,3],"id":1}`, `{"jsonrpc":"2.0","result":5,"id":1}`},
		{"sub", `{"jsonrpc":"2.0","method":"math.Sub","params":[2,3],"id":2}`, `{"jsonrpc":"2.0","result":-1,"id":2}`},
		{"mul wide", `{"jsonrpc":"2.0","method":"math.Mul","params":[100000,100000],"id":3}`, `{"jsonrpc":"2.0","result":10000000000,"id":3}`},
		{"div", `{"jsonrpc":"2.0","method":"math.Div","params":[7,2],"id":4}`, `{"jsonrpc":"2.0","result":3.5,"id":4}`},
		{"echo", `{"jsonrpc":"2.0","method":"echo.Echo","params":["<hi>"],"id":"e"}`, `{"jsonrpc":"2.0","result":"<hi>","id":"e"}`},
		{"reverse", `{"jsonrpc":"2.0","method":"echo.Reverse","params":["héllo"],"id":5}`, `{"jsonrpc":"2.0","result":"olléh","id":5}`},
		{"named concat", `{"jsonrpc":"2.0","method":"echo.Concat","params":{"right":"b","left":"a"},"id":6}`, `{"jsonrpc":"2.0","result":"ab","id":6}`},
		{"named sub", `{"jsonrpc":"2.0","method":"math.Sub","params":{"subtrahend":2,"minuend":9},"id":7}`, `{"jsonrpc":"2.0","result":7,"id":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, s, tt.payload)
			assert.False(t, res.HasError())
			assert.Equal(t, tt.want, res.Text())
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	res := call(t, newServer(t), `{"jsonrpc":"2.0","method":"math.Div","params":[1,0],"id":1}`)

	assert.True(t, res.HasError())
	assert.Equal(t, CodeDivisionByZero, res.Response().Code())
	assert.Equal(t, `{"jsonrpc":"2.0","error":{"code":1,"message":"Division by zero."},"id":1}`, res.Text())
}

func TestNamedParamsWithoutMapping(t *testing.T) {
	res := call(t, newServer(t), `{"jsonrpc":"2.0","method":"math.Mul","params":{"a":1,"b":2},"id":1}`)

	assert.True(t, res.HasError())
	assert.Equal(t, errors.CodeInternalError, res.Response().Code())
}

func TestWrongParamType(t *testing.T) {
	res := call(t, newServer(t), `{"jsonrpc":"2.0","method":"math.Add","params":["2",3],"id":1}`)

	assert.True(t, res.HasError())
	assert.Equal(t, errors.CodeInvalidParams, res.Response().Code())
}
