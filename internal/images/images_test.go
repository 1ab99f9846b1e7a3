package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

type mockSearcher struct {
	image     *core.FeaturedImage
	err       error
	delay     time.Duration
	callCount int
	lastQuery string
}

func (m *mockSearcher) Search(ctx context.Context, query string) (*core.FeaturedImage, error) {
	m.callCount++
	m.lastQuery = query
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.image, m.err
}

func (m *mockSearcher) GetName() string { return "mock" }

func TestQuery(t *testing.T) {
	tests := []struct {
		topic    string
		keywords []string
		expected string
	}{
		{"Technology", []string{"go", "concurrency", "channels", "goroutines"}, "go concurrency channels"},
		{"Technology", []string{" ", "rust"}, "rust"},
		{"Technology", nil, "Technology"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		if got := Query(tt.topic, tt.keywords); got != tt.expected {
			t.Errorf("Query(%q, %v) = %q, expected %q", tt.topic, tt.keywords, got, tt.expected)
		}
	}
}

func TestFetch_Success(t *testing.T) {
	searcher := &mockSearcher{image: &core.FeaturedImage{URL: "https://images.example.com/1.jpg"}}
	fetcher := NewFetcher(searcher, time.Second, logger.Discard())

	image, warning := fetcher.Fetch(context.Background(), "Tech", []string{"go"})
	if warning != nil {
		t.Fatalf("Unexpected warning: %v", warning)
	}
	if image == nil || image.URL != "https://images.example.com/1.jpg" {
		t.Fatalf("Unexpected image %+v", image)
	}
	if image.AltText != "go" {
		t.Errorf("Expected query as fallback alt text, got %q", image.AltText)
	}
	if searcher.callCount != 1 {
		t.Errorf("Expected exactly one search, got %d", searcher.callCount)
	}
}

func TestFetch_FailsOpen(t *testing.T) {
	tests := []struct {
		name     string
		searcher *mockSearcher
	}{
		{"error", &mockSearcher{err: errors.New("boom")}},
		{"empty result", &mockSearcher{}},
		{"empty url", &mockSearcher{image: &core.FeaturedImage{}}},
		{"timeout", &mockSearcher{image: &core.FeaturedImage{URL: "x"}, delay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewFetcher(tt.searcher, 20*time.Millisecond, logger.Discard())
			image, warning := fetcher.Fetch(context.Background(), "Tech", []string{"go"})
			if image != nil {
				t.Errorf("Expected no image, got %+v", image)
			}
			if warning == nil || warning.Kind != core.WarningImageFetch {
				t.Errorf("Expected image fetch warning, got %v", warning)
			}
			if tt.searcher.callCount != 1 {
				t.Errorf("Expected one search, got %d", tt.searcher.callCount)
			}
		})
	}
}

func TestFetch_Disabled(t *testing.T) {
	fetcher := NewFetcher(nil, 0, logger.Discard())
	image, warning := fetcher.Fetch(context.Background(), "Tech", []string{"go"})
	if image != nil || warning != nil {
		t.Errorf("Disabled fetcher should return nothing, got %v %v", image, warning)
	}
}

func TestFetch_NoQuery(t *testing.T) {
	searcher := &mockSearcher{}
	image, warning := NewFetcher(searcher, 0, logger.Discard()).Fetch(context.Background(), "", nil)
	if image != nil || warning == nil {
		t.Errorf("Expected warning without a query, got %v %v", image, warning)
	}
	if searcher.callCount != 0 {
		t.Error("No search should be issued without a query")
	}
}

func TestUnsplashSearcher_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/photos" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Client-ID test-key" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "go concurrency" {
			t.Errorf("Unexpected query %q", got)
		}
		if r.URL.Query().Get("per_page") != "1" {
			t.Error("Expected a single result to be requested")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":1,"results":[{"alt_description":"gopher at a desk","urls":{"regular":"https://images.unsplash.com/photo-1"},"links":{"html":"https://unsplash.com/photos/1"},"user":{"name":"Ada"}}]}`))
	}))
	defer server.Close()

	searcher, err := NewUnsplashSearcher("test-key", server.URL, time.Second, 0)
	if err != nil {
		t.Fatalf("NewUnsplashSearcher failed: %v", err)
	}

	image, err := searcher.Search(context.Background(), "go concurrency")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	expected := core.FeaturedImage{
		URL:          "https://images.unsplash.com/photo-1",
		AltText:      "gopher at a desk",
		Photographer: "Ada",
		SourceURL:    "https://unsplash.com/photos/1",
	}
	if *image != expected {
		t.Errorf("Expected %+v, got %+v", expected, *image)
	}
}

func TestUnsplashSearcher_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errors":["OAuth error"]}`, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ``, ErrRateLimited},
		{"no results", http.StatusOK, `{"total":0,"results":[]}`, ErrNoResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			searcher, _ := NewUnsplashSearcher("key", server.URL, time.Second, 0)
			_, err := searcher.Search(context.Background(), "q")
			if !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
		})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	searcher, _ := NewUnsplashSearcher("key", server.URL, time.Second, 0)
	if _, err := searcher.Search(context.Background(), "q"); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestUnsplashSearcher_RateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"results":[{"urls":{"regular":"u"}}]}`))
	}))
	defer server.Close()

	searcher, _ := NewUnsplashSearcher("key", server.URL, time.Second, 0.5)
	if _, err := searcher.Search(context.Background(), "q"); err != nil {
		t.Fatalf("First search failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := searcher.Search(ctx, "q"); err == nil {
		t.Error("Second search inside the rate window should wait and hit the deadline")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected one request to reach the server, got %d", calls)
	}
}

func TestNewUnsplashSearcher_RequiresKey(t *testing.T) {
	if _, err := NewUnsplashSearcher("", "", 0, 1); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}
