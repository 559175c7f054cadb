// ABOUTME: Management API for inspecting a running engine
// ABOUTME: Provides endpoints for health, config, registered methods and the message journal

package management

import (
	"encoding/json"
	"net/http"

	"github.com/harper/rpc-engine/internal/config"
	"github.com/harper/rpc-engine/internal/db"
	"github.com/harper/rpc-engine/internal/dispatcher"
	"github.com/harper/rpc-engine/internal/logger"
)

var log = logger.Named("management")

type Server struct {
	config     *config.Config
	dispatcher *dispatcher.Dispatcher
	db         *db.DB
	mux        *http.ServeMux
}

// NewServer creates the management API. database may be nil when the
// journal is disabled; the journal endpoints then answer 404.
func NewServer(cfg *config.Config, d *dispatcher.Dispatcher, database *db.DB) *Server {
	s := &Server{
		config:     cfg,
		dispatcher: d,
		db:         database,
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/methods", s.handleMethods)
	s.mux.HandleFunc("/api/pipelines", s.handlePipelines)
	s.mux.HandleFunc("/api/pipelines/{id}/messages", s.handleMessages)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("error encoding response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "healthy",
		"methods": len(s.dispatcher.Methods()),
		"journal": s.db != nil,
	}
	writeJSON(w, health)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config)
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.dispatcher.Methods())
}

type pipelineResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}

	pipelines, err := s.db.Pipelines()
	if err != nil {
		log.Error("failed to list pipelines: %v", err)
		http.Error(w, "failed to get pipelines", http.StatusInternalServerError)
		return
	}

	response := make([]pipelineResponse, 0, len(pipelines))
	for _, p := range pipelines {
		response = append(response, pipelineResponse{
			ID:        p.ID,
			Role:      p.Role,
			Name:      p.Name,
			CreatedAt: p.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	writeJSON(w, response)
}

type messageResponse struct {
	ID          int64   `json:"id"`
	Direction   string  `json:"direction"`
	MessageType string  `json:"messageType"`
	Method      string  `json:"method,omitempty"`
	JSONRPCID   *string `json:"jsonrpcId,omitempty"`
	// Raw is embedded as-is so clients see the payload, not a quoted string.
	Raw       json.RawMessage `json:"raw,omitempty"`
	Text      string          `json:"text,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}

	messages, err := s.db.Messages(r.PathValue("id"))
	if err != nil {
		log.Error("failed to list messages: %v", err)
		http.Error(w, "failed to get messages", http.StatusInternalServerError)
		return
	}

	response := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		mr := messageResponse{
			ID:          m.ID,
			Direction:   string(m.Direction),
			MessageType: m.MessageType,
			Method:      m.Method,
			JSONRPCID:   m.JSONRPCID,
			Timestamp:   m.Timestamp.Format("2006-01-02 15:04:05"),
		}
		// invalid payloads are not valid JSON and go out as text
		if json.Valid([]byte(m.RawMessage)) {
			mr.Raw = json.RawMessage(m.RawMessage)
		} else {
			mr.Text = m.RawMessage
		}
		response = append(response, mr)
	}
	writeJSON(w, response)
}
