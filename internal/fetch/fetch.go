package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"
)

// MaxURLLength is the longest source URL accepted.
const MaxURLLength = 2048

// Options configures a Fetcher.
type Options struct {
	Timeout        time.Duration // Per-attempt timeout
	MaxBodyBytes   int64
	UserAgent      string
	Retries        int // Extra attempts after a timeout
	RetryBaseDelay time.Duration
	MaxConcurrency int64 // Outbound fetches in flight across all pipeline runs
}

// DefaultOptions returns the fetch defaults used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:        30 * time.Second,
		MaxBodyBytes:   5 << 20,
		UserAgent:      "Mozilla/5.0 (compatible; BlogAI/1.0)",
		Retries:        1,
		RetryBaseDelay: 500 * time.Millisecond,
		MaxConcurrency: 16,
	}
}

// Fetcher retrieves source pages over HTTP.
type Fetcher struct {
	client *http.Client
	opts   Options
	sem    *semaphore.Weighted
	log    *slog.Logger
}

// NewFetcher creates a Fetcher. A nil client selects a pooled default client.
func NewFetcher(opts Options, client *http.Client, log *slog.Logger) *Fetcher {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = def.MaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = def.RetryBaseDelay
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = def.MaxConcurrency
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if log == nil {
		log = logger.Get()
	}
	return &Fetcher{
		client: client,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrency),
		log:    log,
	}
}

// ValidateURL checks that raw is an absolute http(s) URL suitable for fetching.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, core.InvalidInput("url is required", nil)
	}
	if len(raw) > MaxURLLength {
		return nil, core.InvalidInput(fmt.Sprintf("url exceeds %d characters", MaxURLLength), nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, core.InvalidInput("malformed url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, core.InvalidInput(fmt.Sprintf("unsupported url scheme %q", u.Scheme), nil)
	}
	if u.Hostname() == "" {
		return nil, core.InvalidInput("url has no host", nil)
	}
	if u.User != nil {
		return nil, core.InvalidInput("url must not embed credentials", nil)
	}
	return u, nil
}

// Fetch downloads rawURL and returns the page decoded to UTF-8.
// Timeouts are retried with exponential backoff; every other failure is final.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (core.SourceDocument, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return core.SourceDocument{}, err
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return core.SourceDocument{}, core.Canceled(err)
	}
	defer f.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			delay := f.opts.RetryBaseDelay * time.Duration(1<<(attempt-1))
			f.log.Warn("Retrying page fetch", "url", u.String(), "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return core.SourceDocument{}, core.Canceled(ctx.Err())
			case <-time.After(delay):
			}
		}

		doc, err := f.fetchOnce(ctx, u.String())
		if err == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return core.SourceDocument{}, core.Canceled(ctx.Err())
		}
		if !isTimeout(err) {
			return core.SourceDocument{}, err
		}
		lastErr = err
	}

	return core.SourceDocument{}, core.Extraction(fmt.Sprintf("fetching %s timed out after %d attempts", u, f.opts.Retries+1), lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (core.SourceDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return core.SourceDocument{}, core.InvalidInput("cannot build request", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return core.SourceDocument{}, fetchError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.SourceDocument{}, core.Extraction(fmt.Sprintf("failed to fetch URL %s: status code %d", target, resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return core.SourceDocument{}, fetchError(target, err)
	}
	if int64(len(raw)) > f.opts.MaxBodyBytes {
		f.log.Warn("Response body truncated", "url", target, "limit", f.opts.MaxBodyBytes)
		raw = raw[:f.opts.MaxBodyBytes]
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return core.SourceDocument{}, core.Extraction(fmt.Sprintf("unparseable content type %q", contentType), err)
	}
	if !IsSupportedMediaType(mediaType) {
		return core.SourceDocument{}, core.Extraction(fmt.Sprintf("unsupported content type %s", mediaType), nil)
	}

	decoded, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return core.SourceDocument{}, core.Extraction("cannot decode response charset", err)
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return core.SourceDocument{}, core.Extraction("cannot decode response body", err)
	}

	return core.SourceDocument{
		URL:         resp.Request.URL.String(),
		RawHTML:     string(body),
		ContentType: mediaType,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// IsSupportedMediaType reports whether pages of this media type can be extracted.
func IsSupportedMediaType(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}

func fetchError(target string, err error) error {
	return core.Extraction(fmt.Sprintf("failed to fetch URL %s", target), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
