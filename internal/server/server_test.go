package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/config"
	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/pipeline"
	"github.com/Ritesh-sh/Blog-AI/internal/store"
)

type mockRunner struct {
	mu         sync.Mutex
	output     *pipeline.Output
	err        error
	extractErr error
	block      chan struct{}
	started    chan struct{}
	lastReq    pipeline.Request
	callCount  int
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Output, error) {
	m.mu.Lock()
	m.callCount++
	m.lastReq = req
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, &core.StageError{Stage: core.StageGenerating, Err: core.Canceled(ctx.Err())}
		}
	}
	return m.output, m.err
}

func (m *mockRunner) Extract(ctx context.Context, url string) (core.ExtractedContent, error) {
	if m.extractErr != nil {
		return core.ExtractedContent{}, m.extractErr
	}
	return core.ExtractedContent{BodyText: strings.Repeat("word ", 700)}, nil
}

type mockHistory struct {
	records map[string]*store.Record
	pingErr error
	lastUser string
}

func (m *mockHistory) Get(ctx context.Context, userID, id string) (*store.Record, error) {
	m.lastUser = userID
	r, ok := m.records[id]
	if !ok || r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (m *mockHistory) List(ctx context.Context, userID string, limit int) ([]store.RecordSummary, error) {
	m.lastUser = userID
	out := []store.RecordSummary{}
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, store.RecordSummary{ID: r.ID, Title: r.Result.Blog.Title})
		}
	}
	return out, nil
}

func (m *mockHistory) History(ctx context.Context, userID string, limit int) ([]store.Action, error) {
	return []store.Action{{ID: "a1", Action: store.ActionGenerateBlog, RecordID: "b1"}}, nil
}

func (m *mockHistory) Ping(ctx context.Context) error { return m.pingErr }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.MaxInflight = 2
	cfg.Server.RequestTimeout = "5s"
	cfg.AI.Gemini.Model = "gemini-2.5-flash"
	return cfg
}

func sampleOutput() *pipeline.Output {
	return &pipeline.Output{
		RecordID: "b1",
		Result: core.PipelineResult{
			SourceURL: "https://example.com/go",
			Blog: core.GeneratedBlog{
				Title:        "Mastering Go",
				Introduction: "Intro",
				Sections:     []core.BlogSection{{Heading: "H", Content: "C"}},
				Conclusion:   "End",
			},
			Analysis:       core.ContentAnalysis{Topic: "Software Development", Confidence: 0.8},
			SEO:            core.SEOReport{WordCount: 812, TargetWordCount: 800, Score: 80},
			WordCount:      812,
			ProcessingTime: 12.5,
		},
	}
}

func newTestServer(runner *mockRunner, history History) *Server {
	return New(runner, history, testConfig(), logger.Discard())
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestGenerateBlog_Success(t *testing.T) {
	runner := &mockRunner{output: sampleOutput()}
	s := newTestServer(runner, nil)

	rec := do(t, s, http.MethodPost, "/api/generate-blog",
		`{"url":"https://example.com/go","tone":"technical","word_count":800}`,
		map[string]string{"X-User-ID": "alice"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["record_id"] != "b1" {
		t.Errorf("Unexpected body %v", body)
	}
	if body["processing_time"].(float64) != 12.5 {
		t.Errorf("Unexpected processing time %v", body["processing_time"])
	}
	if _, ok := body["warnings"].([]any); !ok {
		t.Errorf("Warnings should be an array, got %v", body["warnings"])
	}
	analysis := body["analysis"].(map[string]any)
	if analysis["topic"] != "Software Development" {
		t.Errorf("Unexpected analysis %v", analysis)
	}

	if runner.lastReq.UserID != "alice" || runner.lastReq.Tone != "technical" || runner.lastReq.WordCount != 800 {
		t.Errorf("Unexpected pipeline request %+v", runner.lastReq)
	}
}

func TestGenerateBlog_DefaultUser(t *testing.T) {
	runner := &mockRunner{output: sampleOutput()}
	s := newTestServer(runner, nil)

	do(t, s, http.MethodPost, "/api/generate-blog", `{"url":"https://example.com/go"}`, nil)
	if runner.lastReq.UserID != anonymousUser {
		t.Errorf("Expected anonymous user, got %q", runner.lastReq.UserID)
	}
}

func TestGenerateBlog_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
		stage  string
	}{
		{"invalid tone", &core.StageError{Stage: core.StagePrompting, Err: core.InvalidInput("unsupported tone", nil)}, http.StatusBadRequest, "invalid_input", "prompting"},
		{"not found", &core.StageError{Stage: core.StageFetching, Err: core.Extraction("status code 404", nil)}, http.StatusUnprocessableEntity, "extraction", "fetching"},
		{"analysis", &core.StageError{Stage: core.StageAnalyzing, Err: core.Analysis("embedding failed", nil)}, http.StatusServiceUnavailable, "analysis", "analyzing"},
		{"generation", &core.StageError{Stage: core.StageGenerating, Err: core.Generation("bad response", nil, false)}, http.StatusBadGateway, "generation", "generating"},
		{"canceled", &core.StageError{Stage: core.StageGenerating, Err: core.Canceled(context.Canceled)}, http.StatusGatewayTimeout, "canceled", "generating"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockRunner{err: tt.err}, nil)
			rec := do(t, s, http.MethodPost, "/api/generate-blog", `{"url":"https://example.com/go"}`, nil)

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
			body := decode(t, rec)
			if body["success"] != false {
				t.Error("Expected success false")
			}
			errBody := body["error"].(map[string]any)
			if errBody["kind"] != tt.kind {
				t.Errorf("Expected kind %s, got %v", tt.kind, errBody["kind"])
			}
			if stage, _ := errBody["stage"].(string); stage != tt.stage {
				t.Errorf("Expected stage %q, got %q", tt.stage, stage)
			}
			if _, ok := body["processing_time"].(float64); !ok {
				t.Error("Failure body should carry processing_time")
			}
		})
	}
}

func TestGenerateBlog_InvalidBody(t *testing.T) {
	runner := &mockRunner{output: sampleOutput()}
	s := newTestServer(runner, nil)

	rec := do(t, s, http.MethodPost, "/api/generate-blog", `not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if runner.callCount != 0 {
		t.Error("Pipeline must not run for an invalid body")
	}
}

func TestGenerateBlog_TooManyInflight(t *testing.T) {
	runner := &mockRunner{
		output:  sampleOutput(),
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	s := newTestServer(runner, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(t, s, http.MethodPost, "/api/generate-blog", `{"url":"https://example.com/go"}`, nil)
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatal("Runs did not start")
		}
	}

	rec := do(t, s, http.MethodPost, "/api/generate-blog", `{"url":"https://example.com/go"}`, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 when saturated, got %d", rec.Code)
	}

	close(runner.block)
	wg.Wait()

	runner.started = nil
	runner.block = nil
	rec = do(t, s, http.MethodPost, "/api/generate-blog", `{"url":"https://example.com/go"}`, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 after slots are released, got %d", rec.Code)
	}
}

func historyWithRecord() *mockHistory {
	out := sampleOutput()
	return &mockHistory{records: map[string]*store.Record{
		"b1": {ID: "b1", UserID: "alice", CreatedAt: time.Now(), Result: out.Result},
	}}
}

func TestBlogs(t *testing.T) {
	history := historyWithRecord()
	s := newTestServer(&mockRunner{}, history)
	alice := map[string]string{"X-User-ID": "alice"}

	rec := do(t, s, http.MethodGet, "/api/blogs", "", alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body := decode(t, rec); body["count"].(float64) != 1 {
		t.Errorf("Expected one blog, got %v", body)
	}

	rec = do(t, s, http.MethodGet, "/api/blogs/b1", "", alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	record := decode(t, rec)["record"].(map[string]any)
	if record["id"] != "b1" {
		t.Errorf("Unexpected record %v", record)
	}

	rec = do(t, s, http.MethodGet, "/api/blogs/b1", "", map[string]string{"X-User-ID": "bob"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Other users must get 404, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/blogs?limit=abc", "", alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestExportBlog(t *testing.T) {
	s := newTestServer(&mockRunner{}, historyWithRecord())
	alice := map[string]string{"X-User-ID": "alice"}

	tests := []struct {
		format      string
		contentType string
		filename    string
	}{
		{"md", "text/markdown; charset=utf-8", "mastering-go.md"},
		{"html", "text/html; charset=utf-8", "mastering-go.html"},
		{"pdf", "application/pdf", "mastering-go.pdf"},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, "/api/blogs/b1/export?format="+tt.format, "", alice)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.format, rec.Code)
			continue
		}
		if got := rec.Header().Get("Content-Type"); got != tt.contentType {
			t.Errorf("%s: unexpected content type %s", tt.format, got)
		}
		if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, tt.filename) {
			t.Errorf("%s: unexpected disposition %s", tt.format, got)
		}
	}

	rec := do(t, s, http.MethodGet, "/api/blogs/b1/export?format=docx", "", alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", rec.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(&mockRunner{}, nil)
	for _, path := range []string{"/api/blogs", "/api/blogs/b1", "/api/history"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503 without storage, got %d", path, rec.Code)
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(&mockRunner{}, historyWithRecord())
	rec := do(t, s, http.MethodGet, "/api/history", "", map[string]string{"X-User-ID": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	actions := decode(t, rec)["history"].([]any)
	if len(actions) != 1 {
		t.Errorf("Expected one action, got %v", actions)
	}
}

func TestEstimateCost(t *testing.T) {
	s := newTestServer(&mockRunner{}, nil)

	rec := do(t, s, http.MethodPost, "/api/estimate-cost", `{"url":"https://example.com/go","word_count":1000}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	estimate := decode(t, rec)["estimate"].(map[string]any)
	if estimate["measured"] != true || estimate["content_words"].(float64) != 700 {
		t.Errorf("Expected measured estimate, got %v", estimate)
	}
	if estimate["model"] != "gemini-2.5-flash" || estimate["total_cost"].(float64) <= 0 {
		t.Errorf("Unexpected estimate %v", estimate)
	}

	s = newTestServer(&mockRunner{extractErr: core.Extraction("blocked", nil)}, nil)
	rec = do(t, s, http.MethodPost, "/api/estimate-cost", `{"url":"https://example.com/go"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 with heuristic fallback, got %d", rec.Code)
	}
	estimate = decode(t, rec)["estimate"].(map[string]any)
	if estimate["measured"] != false || estimate["target_word_count"].(float64) != 800 {
		t.Errorf("Expected heuristic estimate for default word count, got %v", estimate)
	}

	rec = do(t, s, http.MethodPost, "/api/estimate-cost", `{"url":"ftp://example.com"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid URL, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&mockRunner{}, &mockHistory{}), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = do(t, newTestServer(&mockRunner{}, &mockHistory{pingErr: errors.New("down")}), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the database is down, got %d", rec.Code)
	}

	rec = do(t, newTestServer(&mockRunner{}, nil), http.MethodGet, "/health", "", nil)
	checks := decode(t, rec)["checks"].(map[string]any)
	if checks["database"] != "disabled" {
		t.Errorf("Expected disabled database check, got %v", checks)
	}
}

func TestRoot(t *testing.T) {
	rec := do(t, newTestServer(&mockRunner{}, nil), http.MethodGet, "/", "", nil)
	body := decode(t, rec)
	if body["service"] != "Blog-AI" || body["model"] != "gemini-2.5-flash" {
		t.Errorf("Unexpected service info %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Security headers should be set")
	}
}

func TestUserID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID(r) != anonymousUser {
		t.Error("Expected anonymous without header")
	}
	r.Header.Set("X-User-ID", "  bob ")
	if userID(r) != "bob" {
		t.Errorf("Expected trimmed user id, got %q", userID(r))
	}
	r.Header.Set("X-User-ID", strings.Repeat("x", 500))
	if len(userID(r)) != maxUserIDLen {
		t.Error("User id should be capped")
	}
}
