package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// HealthChecker is the store surface the API needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionCounter reports how many live connections are registered.
type ConnectionCounter interface {
	Count() int
}

// Server exposes the operational HTTP surface. The CRUD API lives
// elsewhere; this server only reports process health and connection
// counts.
type Server struct {
	store    HealthChecker
	registry ConnectionCounter
	router   *http.ServeMux
}

// NewServer creates the operational API server.
func NewServer(store HealthChecker, registry ConnectionCounter) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		router:   http.NewServeMux(),
	}
	s.router.HandleFunc("/health", s.healthCheck)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Connections int       `json:"connections"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "healthy",
		Database:    "connected",
		Connections: s.registry.Count(),
		Timestamp:   time.Now().UTC(),
	}

	status := http.StatusOK
	if err := s.store.HealthCheck(ctx); err != nil {
		log.Printf("Health check failed: %v", err)
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode health response: %v", err)
	}
}
