// ABOUTME: WebSocket transport for a server pipeline
// ABOUTME: Each text frame is one payload; non-empty results go back in submission order

package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/harper/rpc-engine/internal/logger"
	"github.com/harper/rpc-engine/internal/pipeline"
)

var log = logger.Named("websocket")

// Server upgrades HTTP connections and feeds their frames to one pipeline.
type Server struct {
	pipeline *pipeline.Server
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket transport. A nil checkOrigin accepts any origin.
func NewServer(p *pipeline.Server, checkOrigin func(*http.Request) bool) *Server {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Server{
		pipeline: p,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade failed: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()
	log.Debug("connection opened from %s", conn.RemoteAddr())

	// the pipeline completes futures in FIFO order, so writing them in
	// submission order never holds back a finished result
	pending := make(chan *pipeline.Future, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		broken := false
		for f := range pending {
			text := f.Get().Text()
			if broken || text == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				log.Warn("write error: %v", err)
				broken = true
			}
		}
	}()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error: %v", err)
			}
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		pending <- s.pipeline.Submit(string(message))
	}

	close(pending)
	<-writerDone
	log.Debug("connection closed from %s", conn.RemoteAddr())
}
