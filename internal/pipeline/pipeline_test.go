package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/fetch"
	"github.com/Ritesh-sh/Blog-AI/internal/generate"
	"github.com/Ritesh-sh/Blog-AI/internal/llm"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/seo"
)

type mockFetcher struct {
	delay     time.Duration
	err       error
	callCount atomic.Int32
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (core.SourceDocument, error) {
	m.callCount.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return core.SourceDocument{}, m.err
	}
	return core.SourceDocument{URL: url, RawHTML: "<html></html>", ContentType: "text/html", FetchedAt: time.Now()}, nil
}

type mockExtractor struct {
	err error
}

func (m *mockExtractor) Extract(doc core.SourceDocument) (core.ExtractedContent, error) {
	if m.err != nil {
		return core.ExtractedContent{}, m.err
	}
	body := strings.Repeat("Goroutines and channels make Go concurrency approachable. ", 40)
	return core.ExtractedContent{
		Title:     "  Understanding Go Concurrency  ",
		BodyText:  body,
		Language:  "en",
		WordCount: len(strings.Fields(body)),
	}, nil
}

type mockKeywords struct {
	err       error
	callCount atomic.Int32
}

func (m *mockKeywords) Extract(ctx context.Context, content core.ExtractedContent) (core.KeywordSet, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return core.KeywordSet{}, m.err
	}
	return core.KeywordSet{
		Primary:   []string{"go concurrency", "goroutines"},
		Secondary: []string{"channels", "Goroutines"},
	}, nil
}

type mockTopics struct {
	err error
}

func (m *mockTopics) Analyze(ctx context.Context, content core.ExtractedContent) (core.ContentAnalysis, error) {
	if m.err != nil {
		return core.ContentAnalysis{}, m.err
	}
	return core.ContentAnalysis{
		Topic:         "Software Development",
		Confidence:    0.72,
		Topics:        []string{"Software Development"},
		Intent:        "tutorial",
		Summary:       "Goroutines and channels make Go concurrency approachable.",
		ContentLength: content.WordCount,
	}, nil
}

// mockBackend fails with failErr for the first failUntil calls.
type mockBackend struct {
	mu        sync.Mutex
	response  string
	failErr   error
	failUntil int
	block     bool
	callCount int
}

func (m *mockBackend) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	m.mu.Lock()
	m.callCount++
	count := m.callCount
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.failErr != nil && count <= m.failUntil {
		return "", m.failErr
	}
	return m.response, nil
}

type mockImages struct {
	image   *core.FeaturedImage
	warning *core.Warning
	delay   time.Duration
}

func (m *mockImages) Fetch(ctx context.Context, topic string, primaryKeywords []string) (*core.FeaturedImage, *core.Warning) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.image, m.warning
}

type mockStore struct {
	mu      sync.Mutex
	err     error
	records map[string]core.PipelineResult
	users   []string
}

func (m *mockStore) Append(ctx context.Context, userID string, result core.PipelineResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.records == nil {
		m.records = make(map[string]core.PipelineResult)
	}
	id := "rec-" + string(rune('a'+len(m.records)))
	m.records[id] = result
	m.users = append(m.users, userID)
	return id, nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("goroutines channels scheduling ", n/3+1))
}

// blogJSON returns a valid response of roughly totalWords narrative words.
func blogJSON(totalWords int) string {
	per := (totalWords - 100) / 3
	blog := map[string]any{
		"title":            "Understanding Go Concurrency: Goroutines in Practice",
		"meta_description": "Go concurrency explained.",
		"introduction":     words(50),
		"sections": []map[string]string{
			{"heading": "Goroutines", "content": "Go concurrency starts with goroutines. " + words(per)},
			{"heading": "Channels", "content": words(per)},
			{"heading": "Patterns", "content": words(per)},
		},
		"conclusion": words(50),
		"cta":        "Start writing concurrent Go today.",
		"tags":       []string{"Go", "#concurrency"},
	}
	data, _ := json.Marshal(blog)
	return string(data)
}

type fixture struct {
	fetcher  *mockFetcher
	keywords *mockKeywords
	backend  *mockBackend
	images   *mockImages
	store    *mockStore
	stages   []core.Stage
	mu       sync.Mutex
}

func newFixture() *fixture {
	return &fixture{
		fetcher:  &mockFetcher{},
		keywords: &mockKeywords{},
		backend:  &mockBackend{response: blogJSON(800)},
		images:   &mockImages{image: &core.FeaturedImage{URL: "https://images.example.com/go.jpg", AltText: "gopher"}},
		store:    &mockStore{},
	}
}

func (f *fixture) pipeline(t *testing.T, extractor ContentExtractor, topics TopicAnalyzer) *Pipeline {
	t.Helper()
	return f.pipelineWithHook(t, extractor, topics, nil)
}

func (f *fixture) pipelineWithHook(t *testing.T, extractor ContentExtractor, topics TopicAnalyzer, hook func(core.Stage)) *Pipeline {
	t.Helper()
	genOpts := generate.DefaultOptions()
	genOpts.RetryBaseDelay = time.Millisecond

	p, err := New(Components{
		Fetcher:   f.fetcher,
		Extractor: extractor,
		Keywords:  f.keywords,
		Topics:    topics,
		Generator: generate.New(f.backend, genOpts, logger.Discard()),
		SEO:       seo.New(seo.DefaultOptions()),
		Images:    f.images,
		Store:     f.store,
	}, Options{
		GenericTopic: "General",
		OnStage: func(s core.Stage) {
			f.mu.Lock()
			f.stages = append(f.stages, s)
			f.mu.Unlock()
			if hook != nil {
				hook(s)
			}
		},
	}, logger.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func request() Request {
	return Request{URL: "https://example.com/go-concurrency", Tone: "technical", WordCount: 800, UserID: "alice"}
}

func expectStageError(t *testing.T, err error, stage core.Stage, kind core.ErrorKind) {
	t.Helper()
	var se *core.StageError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *core.StageError, got %T (%v)", err, err)
	}
	if se.Stage != stage {
		t.Errorf("Expected failure at %s, got %s", stage, se.Stage)
	}
	if se.Kind() != kind {
		t.Errorf("Expected kind %s, got %s", kind, se.Kind())
	}
}

func TestNew_RequiresComponents(t *testing.T) {
	if _, err := New(Components{}, Options{}, nil); err == nil {
		t.Error("Expected error without components")
	}
}

func TestRun_Success(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	out, err := p.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := out.Result
	if result.Blog.Title != "Understanding Go Concurrency: Goroutines in Practice" {
		t.Errorf("Unexpected title %q", result.Blog.Title)
	}
	if len(result.Blog.Sections) != 3 {
		t.Errorf("Expected 3 sections, got %d", len(result.Blog.Sections))
	}
	if result.WordCount < 600 || result.WordCount > 1000 {
		t.Errorf("Expected about 800 words, got %d", result.WordCount)
	}
	if !result.SEO.WithinTarget {
		t.Errorf("Expected word count within target, report %+v", result.SEO)
	}
	if l := len(result.Blog.MetaDescription); l == 0 || l > 160 {
		t.Errorf("Meta description length out of bounds: %d", l)
	}
	if result.Blog.FeaturedImage == nil || result.Blog.FeaturedImage.URL != "https://images.example.com/go.jpg" {
		t.Errorf("Expected featured image, got %+v", result.Blog.FeaturedImage)
	}
	if result.Keywords.TopicLabel != "Software Development" || result.Keywords.ConfidenceScore != 0.72 {
		t.Errorf("Topic label not merged into keywords: %+v", result.Keywords)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
	if result.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}

	if out.RecordID == "" {
		t.Error("Expected a record id")
	}
	if f.store.count() != 1 || f.store.users[0] != "alice" {
		t.Errorf("Expected one stored record for alice, got %d %v", f.store.count(), f.store.users)
	}

	if len(f.stages) != len(core.Stages()) {
		t.Fatalf("Expected %d stages, got %v", len(core.Stages()), f.stages)
	}
	for i, s := range core.Stages() {
		if f.stages[i] != s {
			t.Errorf("Stage %d: expected %s, got %s", i, s, f.stages[i])
		}
	}
}

func TestRun_NoUserSkipsPersistence(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	req := request()
	req.UserID = ""
	out, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.RecordID != "" || f.store.count() != 0 {
		t.Error("Nothing should be persisted without a user")
	}
}

func TestRun_FetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newFixture()
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})
	p.c.Fetcher = fetch.NewFetcher(fetch.DefaultOptions(), server.Client(), logger.Discard())

	req := request()
	req.URL = server.URL + "/missing"
	out, err := p.Run(context.Background(), req)
	if out != nil {
		t.Error("Expected no output on failure")
	}
	expectStageError(t, err, core.StageFetching, core.KindExtraction)
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected status code in error, got %v", err)
	}
	if f.store.count() != 0 {
		t.Error("Failed runs must not be persisted")
	}
	if f.keywords.callCount.Load() != 0 {
		t.Error("No later stage should run after a fetch failure")
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, &mockExtractor{err: core.Extraction("page has too little text", nil)}, &mockTopics{})

	_, err := p.Run(context.Background(), request())
	expectStageError(t, err, core.StageExtracting, core.KindExtraction)
}

func TestRun_AnalysisFailure(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{err: core.Analysis("embedding backend unavailable", nil)})

	_, err := p.Run(context.Background(), request())
	expectStageError(t, err, core.StageAnalyzing, core.KindAnalysis)
	if f.backend.callCount != 0 {
		t.Error("Generation must not run after an analysis failure")
	}
}

func TestRun_MissingSections(t *testing.T) {
	f := newFixture()
	f.backend.response = `{"title":"T","meta_description":"m","introduction":"i","conclusion":"c","cta":"x","tags":[]}`
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	_, err := p.Run(context.Background(), request())
	expectStageError(t, err, core.StageGenerating, core.KindGeneration)

	var schemaErr *generate.SchemaError
	if !errors.As(err, &schemaErr) || schemaErr.Field != "sections" {
		t.Errorf("Expected sections schema error, got %v", err)
	}
	if f.store.count() != 0 {
		t.Error("Failed runs must not be persisted")
	}
}

func TestRun_RetriesTransientGeneration(t *testing.T) {
	f := newFixture()
	f.backend.failErr = &llm.Error{Op: "generate", Transient: true, Err: context.DeadlineExceeded}
	f.backend.failUntil = 2
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	out, err := p.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if f.backend.callCount != 3 {
		t.Errorf("Expected 3 backend calls, got %d", f.backend.callCount)
	}
	if out.Result.Blog.Title == "" {
		t.Error("Expected a blog")
	}
}

func TestRun_ImageFailureIsWarning(t *testing.T) {
	f := newFixture()
	f.images = &mockImages{warning: &core.Warning{Kind: core.WarningImageFetch, Message: "no results"}}
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	out, err := p.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Image failures must not fail the run: %v", err)
	}
	if out.Result.Blog.FeaturedImage != nil {
		t.Error("Expected no featured image")
	}
	if !out.Result.HasWarning(core.WarningImageFetch) {
		t.Errorf("Expected image warning, got %v", out.Result.Warnings)
	}
	if f.store.count() != 1 {
		t.Error("Result with warnings should still be persisted")
	}
}

func TestRun_PersistenceFailureIsWarning(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("disk full")
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	out, err := p.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Persistence failures must not fail the run: %v", err)
	}
	if out.RecordID != "" {
		t.Error("Expected no record id")
	}
	if !out.Result.HasWarning(core.WarningPersistence) {
		t.Errorf("Expected persistence warning, got %v", out.Result.Warnings)
	}
}

func TestRun_Canceled(t *testing.T) {
	f := newFixture()
	f.backend.block = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := f.pipelineWithHook(t, &mockExtractor{}, &mockTopics{}, func(s core.Stage) {
		if s == core.StageGenerating {
			cancel()
		}
	})

	out, err := p.Run(ctx, request())
	if out != nil {
		t.Error("Expected no output after cancellation")
	}
	expectStageError(t, err, core.StageGenerating, core.KindCanceled)
	if f.store.count() != 0 {
		t.Error("Canceled runs must not be persisted")
	}
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		tone  string
		stage core.Stage
	}{
		{"bad scheme", "ftp://example.com/file", "technical", core.StageFetching},
		{"empty url", "", "technical", core.StageFetching},
		{"bad tone", "https://example.com/a", "sarcastic", core.StagePrompting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

			req := request()
			req.URL = tt.url
			req.Tone = tt.tone
			_, err := p.Run(context.Background(), req)
			expectStageError(t, err, tt.stage, core.KindInvalidInput)
			if f.fetcher.callCount.Load() != 0 {
				t.Error("Invalid input must be rejected before fetching")
			}
		})
	}
}

func TestRun_WordCountClamped(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	req := request()
	req.WordCount = 50000
	out, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Result.SEO.TargetWordCount != core.MaxWordCount {
		t.Errorf("Expected target clamped to %d, got %d", core.MaxWordCount, out.Result.SEO.TargetWordCount)
	}
	if !out.Result.HasWarning(core.WarningQuality) {
		t.Error("An 800 word blog against a 2000 word target should carry a quality warning")
	}
}

func TestRun_ProcessingTimeExcludesImageFetch(t *testing.T) {
	f := newFixture()
	f.fetcher.delay = 20 * time.Millisecond
	f.images.delay = 300 * time.Millisecond
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	start := time.Now()
	out, err := p.Run(context.Background(), request())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	pt := out.Result.ProcessingTime
	if pt < 0.02 {
		t.Errorf("Processing time should cover the fetch, got %.3fs", pt)
	}
	if pt >= 0.3 {
		t.Errorf("Processing time should exclude the image fetch, got %.3fs", pt)
	}
	if elapsed < 300*time.Millisecond {
		t.Errorf("Run should wait for the image fetch, took %v", elapsed)
	}
}

func TestRun_Concurrent(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, &mockExtractor{}, &mockTopics{})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(context.Background(), request()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent run failed: %v", err)
	}
	if f.store.count() != 5 {
		t.Errorf("Expected 5 stored records, got %d", f.store.count())
	}
}
