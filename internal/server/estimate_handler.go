package server

import (
	"net/http"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/cost"
	"github.com/Ritesh-sh/Blog-AI/internal/fetch"
	"github.com/Ritesh-sh/Blog-AI/internal/prompt"
)

// EstimateCostRequest is the body of POST /api/estimate-cost
type EstimateCostRequest struct {
	URL       string `json:"url"`
	WordCount int    `json:"word_count"`
	Fetch     *bool  `json:"fetch,omitempty"` // Measure the article; defaults to true
}

// handleEstimateCost handles POST /api/estimate-cost
func (s *Server) handleEstimateCost(w http.ResponseWriter, r *http.Request) {
	var req EstimateCostRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err, 0)
		return
	}
	if _, err := fetch.ValidateURL(req.URL); err != nil {
		s.respondErr(w, err, 0)
		return
	}

	var content string
	if req.Fetch == nil || *req.Fetch {
		extracted, err := s.runner.Extract(r.Context(), req.URL)
		if err != nil {
			// Fall back to the URL heuristic; an estimate is still useful.
			s.log.Warn("Cost estimate could not measure article", "url", req.URL, "kind", core.KindOf(err), "error", err)
		} else {
			content = extracted.BodyText
		}
	}

	estimate := cost.EstimateBlogCost(req.URL, content, prompt.ClampWordCount(req.WordCount), cost.EstimateOptions{
		Model:              s.cfg.AI.Gemini.Model,
		ExcerptTokenBudget: s.cfg.Generation.ExcerptTokenBudget,
	})

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"estimate": estimate,
	})
}
