// Package pipeline orchestrates one URL-to-blog run through the stage state
// machine: fetching, extracting, analyzing, prompting, generating,
// post-processing and image fetching, ending in an assembled result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/fetch"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/prompt"
)

// Components are the stage implementations. Images and Store are optional.
type Components struct {
	Fetcher   PageFetcher
	Extractor ContentExtractor
	Keywords  KeywordExtractor
	Topics    TopicAnalyzer
	Generator BlogGenerator
	SEO       SEOPostprocessor
	Images    ImageFetcher
	Store     HistoryStore
}

// Options holds pipeline configuration
type Options struct {
	ExcerptTokenBudget int
	GenericTopic       string

	// OnStage is called when a run enters a stage.
	OnStage func(stage core.Stage)
}

// Request is one inbound generation request.
type Request struct {
	URL       string
	Tone      string
	WordCount int    // Clamped to the supported range
	UserID    string // Empty skips persistence
}

// Output is a successful run.
type Output struct {
	Result   core.PipelineResult
	RecordID string // Empty when the result was not persisted
}

// Pipeline coordinates the stages. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	c       Components
	opts    Options
	log     *slog.Logger
	release func() error
}

// New creates a Pipeline after checking that every required stage is present.
func New(c Components, opts Options, log *slog.Logger) (*Pipeline, error) {
	switch {
	case c.Fetcher == nil:
		return nil, fmt.Errorf("pipeline fetcher is required")
	case c.Extractor == nil:
		return nil, fmt.Errorf("pipeline extractor is required")
	case c.Keywords == nil:
		return nil, fmt.Errorf("pipeline keyword extractor is required")
	case c.Topics == nil:
		return nil, fmt.Errorf("pipeline topic analyzer is required")
	case c.Generator == nil:
		return nil, fmt.Errorf("pipeline generator is required")
	case c.SEO == nil:
		return nil, fmt.Errorf("pipeline SEO postprocessor is required")
	}
	if log == nil {
		log = logger.Get()
	}
	return &Pipeline{c: c, opts: opts, log: log}, nil
}

// Close releases resources opened by the Builder.
func (p *Pipeline) Close() error {
	if p.release == nil {
		return nil
	}
	return p.release()
}

type imageOutcome struct {
	image   *core.FeaturedImage
	warning *core.Warning
}

// Run executes one pipeline invocation. Failures are returned as
// *core.StageError naming the stage; image and persistence problems are
// recorded as warnings on a successful result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	start := time.Now()
	log := p.log.With("run_id", uuid.NewString(), "url", req.URL)

	enter := func(stage core.Stage) {
		log.Info("Pipeline stage", "stage", stage, "elapsed", time.Since(start).Round(time.Millisecond).String())
		if p.opts.OnStage != nil {
			p.opts.OnStage(stage)
		}
	}
	fail := func(stage core.Stage, err error) error {
		if ctx.Err() != nil && core.KindOf(err) != core.KindCanceled {
			err = core.Canceled(err)
		}
		log.Warn("Pipeline failed", "stage", stage, "kind", core.KindOf(err), "error", err, "elapsed", time.Since(start).Round(time.Millisecond).String())
		return &core.StageError{Stage: stage, Err: err}
	}
	var warnings []core.Warning
	warn := func(w core.Warning) {
		log.Warn("Pipeline warning", "kind", w.Kind, "message", w.Message)
		warnings = append(warnings, w)
	}

	// Caller input is checked before any outbound call.
	if _, err := fetch.ValidateURL(req.URL); err != nil {
		return nil, fail(core.StageFetching, err)
	}
	tone, err := core.ParseTone(req.Tone)
	if err != nil {
		return nil, fail(core.StagePrompting, err)
	}

	enter(core.StageFetching)
	doc, err := p.c.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, fail(core.StageFetching, err)
	}

	enter(core.StageExtracting)
	content, err := p.c.Extractor.Extract(doc)
	if err != nil {
		return nil, fail(core.StageExtracting, err)
	}

	enter(core.StageAnalyzing)
	var keywords core.KeywordSet
	var analysis core.ContentAnalysis
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywords, err = p.c.Keywords.Extract(gctx, content)
		return err
	})
	g.Go(func() error {
		var err error
		analysis, err = p.c.Topics.Analyze(gctx, content)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fail(core.StageAnalyzing, err)
	}
	keywords.TopicLabel = analysis.Topic
	keywords.ConfidenceScore = analysis.Confidence

	enter(core.StagePrompting)
	genReq, err := prompt.Build(prompt.Input{
		SourceURL: doc.URL,
		Content:   content,
		Keywords:  keywords,
		Analysis:  analysis,
		Tone:      tone,
		WordCount: req.WordCount,
	}, prompt.Options{
		ExcerptTokenBudget: p.opts.ExcerptTokenBudget,
		GenericTopic:       p.opts.GenericTopic,
	})
	if err != nil {
		return nil, fail(core.StagePrompting, err)
	}

	enter(core.StageGenerating)
	generated, err := p.c.Generator.Generate(ctx, genReq)
	if err != nil {
		return nil, fail(core.StageGenerating, err)
	}
	for _, w := range generated.Warnings {
		warn(w)
	}

	enter(core.StagePostProcessing)
	var images chan imageOutcome
	if p.c.Images != nil {
		images = make(chan imageOutcome, 1)
		go func() {
			image, warning := p.c.Images.Fetch(ctx, genReq.Topic, genReq.PrimaryKeywords)
			images <- imageOutcome{image: image, warning: warning}
		}()
	}
	blog, report := p.c.SEO.Process(generated.Blog, keywords, genReq.TargetWordCount)
	processingTime := time.Since(start)

	enter(core.StageImageFetching)
	if images != nil {
		outcome := <-images
		blog.FeaturedImage = outcome.image
		if outcome.warning != nil {
			warn(*outcome.warning)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(core.StageImageFetching, err)
	}

	enter(core.StageAssembled)
	result := core.PipelineResult{
		SourceURL:      req.URL,
		Blog:           blog,
		Keywords:       keywords,
		Analysis:       analysis,
		SEO:            report,
		WordCount:      report.WordCount,
		ProcessingTime: math.Round(processingTime.Seconds()*1000) / 1000,
		GeneratedAt:    time.Now().UTC(),
		Warnings:       warnings,
	}
	out := &Output{Result: result}

	if p.c.Store != nil && req.UserID != "" {
		id, err := p.c.Store.Append(ctx, req.UserID, result)
		if err != nil {
			w := core.Warning{Kind: core.WarningPersistence, Message: fmt.Sprintf("failed to save blog history: %v", err)}
			log.Warn("Pipeline warning", "kind", w.Kind, "message", w.Message)
			out.Result.Warnings = append(append([]core.Warning{}, result.Warnings...), w)
		} else {
			out.RecordID = id
		}
	}

	log.Info("Pipeline assembled",
		"title", blog.Title,
		"word_count", result.WordCount,
		"seo_score", report.Score,
		"processing_time", result.ProcessingTime,
		"warnings", len(out.Result.Warnings),
		"record_id", out.RecordID)
	return out, nil
}

// Extract fetches url and extracts its article without running the later
// stages. Cost estimation uses it to measure the source.
func (p *Pipeline) Extract(ctx context.Context, url string) (core.ExtractedContent, error) {
	doc, err := p.c.Fetcher.Fetch(ctx, url)
	if err != nil {
		return core.ExtractedContent{}, err
	}
	return p.c.Extractor.Extract(doc)
}
