package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// adminHandler serves the operator surface: health, readiness, the frozen
// route table, and metrics.
func (s *Server) adminHandler() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthz", s.handleHealth)
	router.HandlerFunc(http.MethodGet, "/readyz", s.handleReady)
	router.HandlerFunc(http.MethodGet, "/routes", s.handleRoutes)
	router.Handler(http.MethodGet, "/metrics", s.gateway.Metrics().Handler())
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAdminJSON(w, map[string]any{
		"status":  "ok",
		"version": s.gateway.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// The gateway holds no warm-up state; ready as soon as it listens.
	writeAdminJSON(w, map[string]any{"ready": true})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	table := s.gateway.Table()
	writeAdminJSON(w, map[string]any{
		"topLevel": table.TopLevelRoutes(),
		"actions":  table.Actions(),
	})
}

func writeAdminJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
