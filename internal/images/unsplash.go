package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

// DefaultUnsplashURL is the public Unsplash API.
const DefaultUnsplashURL = "https://api.unsplash.com"

// UnsplashSearcher implements Searcher using the Unsplash search API
type UnsplashSearcher struct {
	accessKey string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewUnsplashSearcher creates an Unsplash searcher limited to
// requestsPerSecond (burst 1). Non-positive rates disable the limiter.
func NewUnsplashSearcher(accessKey, baseURL string, timeout time.Duration, requestsPerSecond float64) (*UnsplashSearcher, error) {
	if accessKey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultUnsplashURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &UnsplashSearcher{
		accessKey: accessKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

// GetName returns the name of this provider
func (s *UnsplashSearcher) GetName() string {
	return "Unsplash"
}

type unsplashResponse struct {
	Total   int `json:"total"`
	Results []struct {
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
			Full    string `json:"full"`
		} `json:"urls"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
	Errors []string `json:"errors,omitempty"`
}

// Search returns the top landscape photo for query.
func (s *UnsplashSearcher) Search(ctx context.Context, query string) (*core.FeaturedImage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")
	params.Set("orientation", "landscape")
	params.Set("content_filter", "high")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unsplash request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute Unsplash request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unsplash request failed with status: %d", resp.StatusCode)
	}

	var apiResponse unsplashResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse Unsplash response: %w", err)
	}
	if len(apiResponse.Errors) > 0 {
		return nil, fmt.Errorf("unsplash error: %s", strings.Join(apiResponse.Errors, "; "))
	}
	if len(apiResponse.Results) == 0 {
		return nil, ErrNoResults
	}

	photo := apiResponse.Results[0]
	imageURL := photo.URLs.Regular
	if imageURL == "" {
		imageURL = photo.URLs.Full
	}
	alt := photo.AltDescription
	if alt == "" {
		alt = photo.Description
	}

	return &core.FeaturedImage{
		URL:          imageURL,
		AltText:      alt,
		Photographer: photo.User.Name,
		SourceURL:    photo.Links.HTML,
	}, nil
}
