// ABOUTME: HTTP server exposing a server pipeline over POST
// ABOUTME: Routes the RPC path, a health probe and any extra mounted handlers

package http

import (
	"net/http"

	"github.com/harper/rpc-engine/internal/logger"
	"github.com/harper/rpc-engine/internal/pipeline"
)

var log = logger.Named("http")

// MaxBodyBytes bounds a single POSTed payload.
const MaxBodyBytes = 1 << 20

type Server struct {
	pipeline *pipeline.Server
	mux      *http.ServeMux
}

// NewServer routes rpcPath to the pipeline and /health to a probe.
func NewServer(p *pipeline.Server, rpcPath string) *Server {
	s := &Server{
		pipeline: p,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc(rpcPath, s.handleRPC)
	s.mux.HandleFunc("/health", s.handleHealth)

	return s
}

// Handle mounts another handler on the same mux, e.g. the WebSocket endpoint.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
