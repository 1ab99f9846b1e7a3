// Package images finds a featured image for a generated blog. Lookups fail
// open: any problem yields no image and a warning, never an error.
package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

var (
	// ErrMissingAPIKey is returned when the provider needs a key and none is set
	ErrMissingAPIKey = errors.New("image search API key is required")

	// ErrNoResults is returned when a search matches no photos
	ErrNoResults = errors.New("no images found")

	// ErrRateLimited is returned when the provider throttles us
	ErrRateLimited = errors.New("image search rate limit exceeded")

	// ErrUnauthorized is returned when the provider rejects the key
	ErrUnauthorized = errors.New("image search credentials rejected")
)

const (
	// DefaultTimeout bounds one image search.
	DefaultTimeout  = 10 * time.Second
	maxQueryTerms   = 3
	maxAltTextChars = 125
)

// Searcher is an image-search backend.
type Searcher interface {
	Search(ctx context.Context, query string) (*core.FeaturedImage, error)
	GetName() string
}

// Fetcher applies the fail-open policy around a Searcher.
type Fetcher struct {
	searcher Searcher
	timeout  time.Duration
	log      *slog.Logger
}

// NewFetcher creates a Fetcher. A nil searcher disables image lookup.
func NewFetcher(searcher Searcher, timeout time.Duration, log *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Get()
	}
	return &Fetcher{searcher: searcher, timeout: timeout, log: log}
}

// Enabled reports whether a searcher is configured.
func (f *Fetcher) Enabled() bool { return f != nil && f.searcher != nil }

// Fetch issues at most one search for the blog's keywords and returns the
// best match. Failures are returned as a warning with a nil image.
func (f *Fetcher) Fetch(ctx context.Context, topic string, primaryKeywords []string) (*core.FeaturedImage, *core.Warning) {
	if !f.Enabled() {
		return nil, nil
	}
	query := Query(topic, primaryKeywords)
	if query == "" {
		return nil, &core.Warning{Kind: core.WarningImageFetch, Message: "no keywords or topic to search images for"}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	image, err := f.searcher.Search(ctx, query)
	if err == nil && (image == nil || image.URL == "") {
		err = ErrNoResults
	}
	if err != nil {
		f.log.Warn("Featured image lookup failed", "provider", f.searcher.GetName(), "query", query, "error", err)
		return nil, &core.Warning{Kind: core.WarningImageFetch, Message: fmt.Sprintf("%s search for %q failed: %v", f.searcher.GetName(), query, err)}
	}

	if image.AltText == "" {
		image.AltText = query
	}
	image.AltText = truncate(image.AltText, maxAltTextChars)
	f.log.Debug("Featured image found", "provider", f.searcher.GetName(), "query", query, "url", image.URL)
	return image, nil
}

// Query builds the search query from the top primary keywords, falling back
// to the topic label.
func Query(topic string, primaryKeywords []string) string {
	var terms []string
	for _, k := range primaryKeywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, k)
		}
		if len(terms) == maxQueryTerms {
			break
		}
	}
	if len(terms) > 0 {
		return strings.Join(terms, " ")
	}
	return strings.TrimSpace(topic)
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:limit]))
}
