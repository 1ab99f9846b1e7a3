package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Ritesh-sh/Blog-AI/internal/config"
	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/fetch"
	"github.com/Ritesh-sh/Blog-AI/internal/generate"
	"github.com/Ritesh-sh/Blog-AI/internal/images"
	"github.com/Ritesh-sh/Blog-AI/internal/keywords"
	"github.com/Ritesh-sh/Blog-AI/internal/llm"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/seo"
	"github.com/Ritesh-sh/Blog-AI/internal/store"
	"github.com/Ritesh-sh/Blog-AI/internal/topics"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	cfg        *config.Config
	llmClient  *llm.Client
	store      *store.Store
	httpClient *http.Client
	log        *slog.Logger
	onStage    func(core.Stage)
	skipStore  bool
	skipImages bool

	ownsLLM   bool
	ownsStore bool
}

// NewBuilder creates a new pipeline builder for cfg
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithLLMClient sets the LLM client; the caller keeps ownership
func (b *Builder) WithLLMClient(client *llm.Client) *Builder {
	b.llmClient = client
	return b
}

// WithStore sets the history store; the caller keeps ownership
func (b *Builder) WithStore(s *store.Store) *Builder {
	b.store = s
	return b
}

// WithHTTPClient sets the client used to fetch source pages
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the logger passed to every stage
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// WithStageHook registers a callback for stage transitions
func (b *Builder) WithStageHook(fn func(core.Stage)) *Builder {
	b.onStage = fn
	return b
}

// WithoutHistory disables persistence
func (b *Builder) WithoutHistory() *Builder {
	b.skipStore = true
	return b
}

// WithoutImages disables featured image search
func (b *Builder) WithoutImages() *Builder {
	b.skipImages = true
	return b
}

// Store returns the history store used by the last Build, or nil.
func (b *Builder) Store() *store.Store {
	return b.store
}

// Build constructs a fully configured Pipeline. Resources opened here are
// released by Pipeline.Close.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	cfg := b.cfg
	log := b.log
	if log == nil {
		log = logger.Get()
	}

	if b.llmClient == nil {
		if err := cfg.RequireGemini(); err != nil {
			return nil, err
		}
		client, err := llm.NewClient(ctx, llm.Config{
			APIKey:              cfg.AI.Gemini.APIKey,
			Model:               cfg.AI.Gemini.Model,
			EmbeddingModel:      cfg.AI.Gemini.EmbeddingModel,
			EmbeddingDimensions: cfg.AI.Gemini.EmbeddingDimensions,
			Timeout:             config.Duration(cfg.AI.Gemini.Timeout, llm.DefaultTimeout),
			MaxTokens:           cfg.AI.Gemini.MaxTokens,
			Temperature:         cfg.AI.Gemini.Temperature,
			MaxConcurrency:      int64(cfg.AI.Gemini.MaxConcurrency),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		b.llmClient = client
		b.ownsLLM = true
	}

	vocab, err := topics.LoadVocabulary(cfg.Topics.VocabularyFile)
	if err != nil {
		b.release()
		return nil, err
	}

	fetcher := NewFetcher(cfg, b.httpClient, log)

	genDefaults := generate.DefaultOptions()
	generator := generate.New(b.llmClient, generate.Options{
		MaxRetries:     cfg.Generation.MaxRetries,
		RetryBaseDelay: config.Duration(cfg.Generation.RetryBaseDelay, genDefaults.RetryBaseDelay),
		QualityFloor:   cfg.Generation.QualityFloor,
		MaxTokens:      cfg.AI.Gemini.MaxTokens,
		Temperature:    cfg.AI.Gemini.Temperature,
	}, log)

	c := Components{
		Fetcher:   fetcher,
		Extractor: fetch.NewExtractor(cfg.Fetch.MinWords, log),
		Keywords: keywords.New(b.llmClient, keywords.Options{
			PrimaryCount:    cfg.Keywords.PrimaryCount,
			SecondaryCount:  cfg.Keywords.SecondaryCount,
			DedupeThreshold: cfg.Keywords.DedupeThreshold,
			MaxCandidates:   cfg.Keywords.MaxCandidates,
		}, log),
		Topics: topics.New(b.llmClient, vocab, topics.Options{
			MinConfidence: cfg.Topics.MinConfidence,
		}, log),
		Generator: generator,
		SEO: seo.New(seo.Options{
			MetaMin: cfg.SEO.MetaMin,
			MetaMax: cfg.SEO.MetaMax,
			MaxTags: cfg.SEO.MaxTags,
		}),
	}

	if !b.skipImages && cfg.HasImageSearch() {
		timeout := config.Duration(cfg.Images.Timeout, images.DefaultTimeout)
		searcher, err := images.NewUnsplashSearcher(cfg.Images.AccessKey, cfg.Images.BaseURL, timeout, cfg.Images.RequestsPerSecond)
		if err != nil {
			b.release()
			return nil, fmt.Errorf("failed to create image searcher: %w", err)
		}
		c.Images = images.NewFetcher(searcher, timeout, log)
	} else {
		log.Info("Featured image search disabled")
	}

	if !b.skipStore {
		if b.store == nil {
			s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				b.release()
				return nil, fmt.Errorf("failed to open history store: %w", err)
			}
			b.store = s
			b.ownsStore = true
		}
		c.Store = b.store
	}

	p, err := New(c, Options{
		ExcerptTokenBudget: cfg.Generation.ExcerptTokenBudget,
		GenericTopic:       vocab.Generic,
		OnStage:            b.onStage,
	}, log)
	if err != nil {
		b.release()
		return nil, err
	}
	p.release = b.release
	return p, nil
}

// release closes the resources this builder opened.
func (b *Builder) release() error {
	var err error
	if b.ownsStore && b.store != nil {
		err = b.store.Close()
		b.store = nil
		b.ownsStore = false
	}
	if b.ownsLLM && b.llmClient != nil {
		b.llmClient.Close()
		b.llmClient = nil
		b.ownsLLM = false
	}
	return err
}

// NewFetcher creates the page fetcher described by the fetch section of cfg.
func NewFetcher(cfg *config.Config, client *http.Client, log *slog.Logger) *fetch.Fetcher {
	defaults := fetch.DefaultOptions()
	return fetch.NewFetcher(fetch.Options{
		Timeout:        config.Duration(cfg.Fetch.Timeout, defaults.Timeout),
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		UserAgent:      cfg.Fetch.UserAgent,
		Retries:        cfg.Fetch.Retries,
		RetryBaseDelay: config.Duration(cfg.Fetch.RetryBaseDelay, defaults.RetryBaseDelay),
		MaxConcurrency: int64(cfg.Fetch.MaxConcurrency),
	}, client, log)
}
