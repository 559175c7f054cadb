// ABOUTME: HTTP handlers translating POST bodies into pipeline submissions
// ABOUTME: JSON-RPC errors travel in a 200 body; transport errors use status codes

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "JSON-RPC requires POST method", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	defer func() { _ = r.Body.Close() }()
	if err != nil {
		http.Error(w, "failed to read body", http.StatusRequestEntityTooLarge)
		return
	}

	res, err := s.pipeline.Submit(string(body)).Wait(r.Context())
	if err != nil {
		// client went away; the pipeline still finishes the payload
		log.Debug("request abandoned: %v", err)
		return
	}

	text := res.Text()
	if text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // JSON-RPC errors still return 200
	if _, err := io.WriteString(w, text); err != nil {
		log.Warn("error writing response: %v", err)
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Methods  int    `json:"methods"`
	Pipeline string `json:"pipeline"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:   "ok",
		Methods:  len(s.pipeline.Dispatcher().Methods()),
		Pipeline: s.pipeline.State().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn("error encoding health response: %v", err)
	}
}
