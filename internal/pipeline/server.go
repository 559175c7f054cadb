// ABOUTME: Server role: parses requests, dispatches them and serializes responses
// ABOUTME: Every failure becomes a coded error response carrying the best id available

package pipeline

import (
	"context"

	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/jsonrpc"
)

// Server answers request payloads with methods from a dispatcher.
type Server struct {
	*pipeline
	dispatcher *dispatcher.Dispatcher
}

// NewServer creates a server pipeline. Several servers may share one
// dispatcher; its handlers then run concurrently.
func NewServer(d *dispatcher.Dispatcher, opts ...Option) *Server {
	s := &Server{pipeline: newPipeline("server", opts), dispatcher: d}
	s.serialize = true
	s.single = s.processRequest
	return s
}

// Dispatcher returns the dispatcher requests are routed to.
func (s *Server) Dispatcher() *dispatcher.Dispatcher { return s.dispatcher }

func (s *Server) processRequest(ctx context.Context, payload string) Result {
	req, err := jsonrpc.ParseRequest(payload)
	if err != nil {
		s.log.Debug("rejected request: %v", err)
		return s.failure(err, jsonrpc.RecoverID(payload))
	}

	resp, err := s.dispatcher.Invoke(ctx, req)
	if err != nil {
		// notifications have no id; their errors go out with a null one
		return s.failure(err, req.ID())
	}

	text, err := jsonrpc.EncodeResponse(resp)
	if err != nil {
		return s.failure(err, req.ID())
	}
	return Result{response: resp, text: text}
}
