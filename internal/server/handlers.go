package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServiceInfo is the body of GET /
type ServiceInfo struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Model     string   `json:"model"`
	Uptime    string   `json:"uptime"`
	Endpoints []string `json:"endpoints"`
}

// handleRoot handles the / endpoint
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, ServiceInfo{
		Service: "Blog-AI",
		Version: Version,
		Model:   s.cfg.AI.Gemini.Model,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Endpoints: []string{
			"POST /api/generate-blog",
			"POST /api/estimate-cost",
			"GET /api/blogs",
			"GET /api/blogs/{id}",
			"GET /api/blogs/{id}/export?format=md|html|pdf",
			"GET /api/history",
			"GET /health",
		},
	})
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if s.history == nil {
		checks["database"] = "disabled"
	} else if err := s.history.Ping(r.Context()); err != nil {
		s.log.Warn("Health check failed", "error", err)
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	} else {
		checks["database"] = "ok"
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// ErrorBody is the failure envelope of every API endpoint.
type ErrorBody struct {
	Success        bool               `json:"success"`
	Error          core.ErrorResponse `json:"error"`
	ProcessingTime float64            `json:"processing_time"`
}

// statusForKind maps an error kind onto an HTTP status.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidInput:
		return http.StatusBadRequest
	case core.KindExtraction:
		return http.StatusUnprocessableEntity
	case core.KindAnalysis:
		return http.StatusServiceUnavailable
	case core.KindGeneration:
		return http.StatusBadGateway
	case core.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes the failure envelope
func (s *Server) respondError(w http.ResponseWriter, status int, resp core.ErrorResponse, processingTime float64) {
	s.respondJSON(w, status, ErrorBody{
		Success:        false,
		Error:          resp,
		ProcessingTime: processingTime,
	})
}

// respondErr classifies err and writes the failure envelope
func (s *Server) respondErr(w http.ResponseWriter, err error, processingTime float64) {
	resp := core.NewErrorResponse(err)
	s.respondError(w, statusForKind(resp.Kind), resp, processingTime)
}
