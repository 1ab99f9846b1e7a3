package pipeline

import (
	"context"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/generate"
)

// PageFetcher retrieves the source page
type PageFetcher interface {
	// Fetch validates the URL and downloads the page with bounded time and size
	Fetch(ctx context.Context, url string) (core.SourceDocument, error)
}

// ContentExtractor cleans a fetched page into article text
type ContentExtractor interface {
	Extract(doc core.SourceDocument) (core.ExtractedContent, error)
}

// KeywordExtractor ranks keywords by embedding similarity
type KeywordExtractor interface {
	Extract(ctx context.Context, content core.ExtractedContent) (core.KeywordSet, error)
}

// TopicAnalyzer classifies the article's subject and intent
type TopicAnalyzer interface {
	Analyze(ctx context.Context, content core.ExtractedContent) (core.ContentAnalysis, error)
}

// BlogGenerator invokes the generative backend and validates its output
type BlogGenerator interface {
	Generate(ctx context.Context, req core.GenerationRequest) (*generate.Result, error)
}

// SEOPostprocessor refines a generated blog. It must be idempotent.
type SEOPostprocessor interface {
	Process(blog core.GeneratedBlog, keywords core.KeywordSet, targetWordCount int) (core.GeneratedBlog, core.SEOReport)
}

// ImageFetcher finds a featured image (optional). It never fails; problems
// come back as a warning.
type ImageFetcher interface {
	Fetch(ctx context.Context, topic string, primaryKeywords []string) (*core.FeaturedImage, *core.Warning)
}

// HistoryStore persists finished results (optional)
type HistoryStore interface {
	Append(ctx context.Context, userID string, result core.PipelineResult) (string, error)
}
