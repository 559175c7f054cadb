package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	d := dispatcher.New()
	require.NoError(t, d.AddMethod("add", func(a, b int32) int32 { return a + b }))
	require.NoError(t, d.AddMethod("touch", func() {}))
	return NewServer(pipeline.NewServer(d, pipeline.WithIdleTimeout(50*time.Millisecond)), "/rpc")
}

func post(srv http.Handler, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestRPCRequest(t *testing.T) {
	rec := post(newTestServer(t), "application/json", `{"jsonrpc":"2.0","method":"add","params":[2,3],"id":1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"jsonrpc":"2.0","result":5,"id":1}`, rec.Body.String())
}

func TestRPCErrorStillOK(t *testing.T) {
	rec := post(newTestServer(t), "application/json; charset=utf-8", `{"jsonrpc":"2.0","method":"missing","id":7}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found."},"id":7}`, rec.Body.String())
}

func TestRPCNotificationNoContent(t *testing.T) {
	rec := post(newTestServer(t), "", `{"jsonrpc":"2.0","method":"touch"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRPCBatch(t *testing.T) {
	rec := post(newTestServer(t), "application/json",
		`[{"jsonrpc":"2.0","method":"add","params":[1,2],"id":1},{"jsonrpc":"2.0","method":"touch"},{"jsonrpc":"2.0","method":"add","params":[3,4],"id":2}]`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"jsonrpc":"2.0","result":3,"id":1},{"jsonrpc":"2.0","result":7,"id":2}]`, rec.Body.String())
}

func TestRPCRejectsMethods(t *testing.T) {
	srv := newTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/rpc", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"), method)
	}
}

func TestRPCRejectsContentType(t *testing.T) {
	rec := post(newTestServer(t), "text/plain", `{"jsonrpc":"2.0","method":"touch"}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRPCBodyTooLarge(t *testing.T) {
	rec := post(newTestServer(t), "application/json", strings.Repeat(" ", MaxBodyBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Methods)
	assert.Contains(t, []string{"idle", "running"}, resp.Pipeline)
}

func TestHandleMountsExtraRoutes(t *testing.T) {
	srv := newTestServer(t)
	srv.Handle("/extra", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extra", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
