// Package generate turns a GenerationRequest into a validated GeneratedBlog
// using the generative backend.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/llm"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/prompt"
)

// TextGenerator is the generative backend.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Options configures a Generator.
type Options struct {
	MaxRetries     int           // Retries after the first attempt, for transient errors only
	RetryBaseDelay time.Duration // Doubled on every retry
	QualityFloor   float64       // Fraction of the target word count below which a quality warning is raised
	MaxTokens      int32
	Temperature    float32
}

// DefaultOptions returns the generation defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     2,
		RetryBaseDelay: time.Second,
		QualityFloor:   0.5,
		MaxTokens:      8192,
		Temperature:    0.7,
	}
}

// Result is a successful generation.
type Result struct {
	Blog      core.GeneratedBlog
	WordCount int // Words in the narrative fields
	Attempts  int
	Warnings  []core.Warning
}

// Generator calls the backend and validates its output. It keeps no state
// between calls.
type Generator struct {
	backend TextGenerator
	opts    Options
	log     *slog.Logger
}

// New creates a Generator.
func New(backend TextGenerator, opts Options, log *slog.Logger) *Generator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultOptions().RetryBaseDelay
	}
	if opts.QualityFloor <= 0 || opts.QualityFloor > 1 {
		opts.QualityFloor = DefaultOptions().QualityFloor
	}
	if log == nil {
		log = logger.Get()
	}
	return &Generator{backend: backend, opts: opts, log: log}
}

// Generate produces a blog for req. Transient backend errors are retried with
// exponential backoff; permanent errors and invalid responses fail at once.
// A blog shorter than the quality floor is returned with a quality warning.
func (g *Generator) Generate(ctx context.Context, req core.GenerationRequest) (*Result, error) {
	text := prompt.Render(req)
	options := llm.TextGenerationOptions{
		MaxTokens:      g.opts.MaxTokens,
		Temperature:    g.opts.Temperature,
		ResponseSchema: BlogSchema(),
	}

	maxAttempts := g.opts.MaxRetries + 1
	var raw string
	var err error
	attempt := 0
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		raw, err = g.backend.GenerateText(ctx, text, options)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, core.Canceled(ctx.Err())
		}
		if !llm.IsTransient(err) {
			return nil, core.Generation("generative backend rejected the request", err, false)
		}
		if attempt == maxAttempts {
			break
		}

		delay := g.opts.RetryBaseDelay * time.Duration(1<<(attempt-1))
		g.log.Warn("Transient generation error, retrying", "attempt", attempt, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return nil, core.Canceled(err)
		}
	}
	if err != nil {
		return nil, core.Generation(fmt.Sprintf("generative backend failed after %d attempts", maxAttempts), err, true)
	}

	blog, err := Parse(raw)
	if err != nil {
		return nil, core.Generation("model response failed validation", err, false)
	}

	result := &Result{Blog: blog, WordCount: CountWords(blog), Attempts: attempt}
	if floor := int(g.opts.QualityFloor * float64(req.TargetWordCount)); result.WordCount < floor {
		result.Warnings = append(result.Warnings, core.Warning{
			Kind:    core.WarningQuality,
			Message: fmt.Sprintf("generated %d words, below %d (%.0f%% of the %d word target)", result.WordCount, floor, g.opts.QualityFloor*100, req.TargetWordCount),
		})
	}

	g.log.Debug("Generated blog", "title", blog.Title, "sections", len(blog.Sections), "words", result.WordCount, "attempts", attempt)
	return result, nil
}

// CountWords counts the words of the introduction, section bodies and
// conclusion.
func CountWords(blog core.GeneratedBlog) int {
	n := len(strings.Fields(blog.Introduction)) + len(strings.Fields(blog.Conclusion))
	for _, s := range blog.Sections {
		n += len(strings.Fields(s.Content))
	}
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
