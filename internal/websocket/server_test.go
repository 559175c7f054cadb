package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	d := dispatcher.New()
	require.NoError(t, d.AddMethod("add", func(a, b int32) int32 { return a + b }))
	require.NoError(t, d.AddMethod("touch", func() {}))
	return NewServer(pipeline.NewServer(d, pipeline.WithIdleTimeout(50*time.Millisecond)), nil)
}

func readText(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	msgType, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	return string(msg)
}

func TestWebSocketRequest(t *testing.T) {
	ws := dial(t, newTestServer(t))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`)))
	assert.Equal(t, `{"jsonrpc":"2.0","result":5,"id":1}`, readText(t, ws))
}

func TestWebSocketNotificationsProduceNoFrame(t *testing.T) {
	ws := dial(t, newTestServer(t))

	// the notification yields nothing, so the next frame read is the request's answer
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"touch"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"add","params":[1,1],"id":"n"}`)))
	assert.Equal(t, `{"jsonrpc":"2.0","result":2,"id":"n"}`, readText(t, ws))
}

func TestWebSocketPreservesOrder(t *testing.T) {
	ws := dial(t, newTestServer(t))

	const n = 50
	for i := 0; i < n; i++ {
		frame := fmt.Sprintf(`{"jsonrpc":"2.0","method":"add","params":[%d,0],"id":%d}`, i, i)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf(`{"jsonrpc":"2.0","result":%d,"id":%d}`, i, i), readText(t, ws))
	}
}

func TestWebSocketMalformedFrame(t *testing.T) {
	ws := dial(t, newTestServer(t))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{bad`)))
	assert.Equal(t,
		`{"jsonrpc":"2.0","error":{"code":-32700,"message":"JSON parse error.","data":"Request parse error."},"id":null}`,
		readText(t, ws))
}

func TestWebSocketOriginRejected(t *testing.T) {
	d := dispatcher.New()
	srv := NewServer(pipeline.NewServer(d), func(*http.Request) bool { return false })
	httpSrv := httptest.NewServer(srv)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	}
}
