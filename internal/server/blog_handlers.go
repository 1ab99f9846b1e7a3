package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/pipeline"
	"github.com/Ritesh-sh/Blog-AI/internal/render"
	"github.com/Ritesh-sh/Blog-AI/internal/store"
)

const maxRequestBodyBytes = 1 << 20

// GenerateBlogRequest is the body of POST /api/generate-blog
type GenerateBlogRequest struct {
	URL       string `json:"url"`
	Tone      string `json:"tone"`
	WordCount int    `json:"word_count"`
}

// GenerateBlogResponse is the success body of POST /api/generate-blog
type GenerateBlogResponse struct {
	Success        bool                 `json:"success"`
	RecordID       string               `json:"record_id,omitempty"`
	Result         core.PipelineResult  `json:"result"`
	Analysis       core.ContentAnalysis `json:"analysis"`
	SEO            core.SEOReport       `json:"seo"`
	Warnings       []core.Warning       `json:"warnings"`
	ProcessingTime float64              `json:"processing_time"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return core.InvalidInput("request body must be a JSON object", err)
	}
	return nil
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// handleGenerateBlog handles POST /api/generate-blog
func (s *Server) handleGenerateBlog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req GenerateBlogRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err, seconds(time.Since(start)))
		return
	}

	out, err := s.runner.Run(r.Context(), pipeline.Request{
		URL:       req.URL,
		Tone:      req.Tone,
		WordCount: req.WordCount,
		UserID:    userID(r),
	})
	if err != nil {
		s.respondErr(w, err, seconds(time.Since(start)))
		return
	}

	warnings := out.Result.Warnings
	if warnings == nil {
		warnings = []core.Warning{}
	}
	s.respondJSON(w, http.StatusOK, GenerateBlogResponse{
		Success:        true,
		RecordID:       out.RecordID,
		Result:         out.Result,
		Analysis:       out.Result.Analysis,
		SEO:            out.Result.SEO,
		Warnings:       warnings,
		ProcessingTime: out.Result.ProcessingTime,
	})
}

// requireHistory answers 503 when storage is disabled.
func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history != nil {
		return true
	}
	s.respondError(w, http.StatusServiceUnavailable, core.ErrorResponse{
		Kind:    core.KindInternal,
		Message: "blog history is disabled",
	}, 0)
	return false
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return store.DefaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 100 {
		return 0, core.InvalidInput(fmt.Sprintf("limit must be between 1 and 100, got %q", raw), nil)
	}
	return limit, nil
}

// handleListBlogs handles GET /api/blogs
func (s *Server) handleListBlogs(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.respondErr(w, err, 0)
		return
	}

	blogs, err := s.history.List(r.Context(), userID(r), limit)
	if err != nil {
		s.log.Error("Failed to list blogs", "error", err)
		s.respondErr(w, err, 0)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"blogs":   blogs,
		"count":   len(blogs),
	})
}

// loadRecord fetches the {id} record for the caller, writing 404 when missing.
func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (*store.Record, bool) {
	id := chi.URLParam(r, "id")
	record, err := s.history.Get(r.Context(), userID(r), id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, core.ErrorResponse{
			Kind:    core.KindInvalidInput,
			Message: fmt.Sprintf("blog %s not found", id),
		}, 0)
		return nil, false
	}
	if err != nil {
		s.log.Error("Failed to load blog", "id", id, "error", err)
		s.respondErr(w, err, 0)
		return nil, false
	}
	return record, true
}

// handleGetBlog handles GET /api/blogs/{id}
func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	record, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"record":  record,
	})
}

// handleExportBlog handles GET /api/blogs/{id}/export?format=md|html|pdf
func (s *Server) handleExportBlog(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondErr(w, err, 0)
		return
	}
	record, ok := s.loadRecord(w, r)
	if !ok {
		return
	}

	data, err := render.Render(record.Result, format)
	if err != nil {
		s.log.Error("Failed to render blog", "id", record.ID, "format", format, "error", err)
		s.respondErr(w, err, 0)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", render.Filename(record.Result, format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warn("Failed to write export", "id", record.ID, "error", err)
	}
}

// handleHistory handles GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.respondErr(w, err, 0)
		return
	}

	actions, err := s.history.History(r.Context(), userID(r), limit)
	if err != nil {
		s.log.Error("Failed to load history", "error", err)
		s.respondErr(w, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": actions,
	})
}
