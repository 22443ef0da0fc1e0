package api

import (
	"encoding/json"
	"log"
	"net/http"

	"ensemble/internal/registry"
)

// Server is the health endpoint, served on its own port so load balancers
// can probe liveness without touching the websocket listener.
type Server struct {
	rooms *registry.Registry
	mux   *http.ServeMux
}

// NewServer creates the health server.
func NewServer(rooms *registry.Registry) *Server {
	s := &Server{rooms: rooms, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStats)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.rooms.Stats()); err != nil {
		log.Printf("Failed to encode stats: %v", err)
	}
}
