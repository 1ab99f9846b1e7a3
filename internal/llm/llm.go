package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/floats"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model used for blog generation.
	DefaultModel = "gemini-2.5-flash"
	// DefaultEmbeddingModel is the default model for generating embeddings
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka)
	DefaultEmbeddingDimensions = int32(768)
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 60 * time.Second

	// maxEmbedBatch is the number of texts sent in one embedding request.
	maxEmbedBatch = 100
	// maxEmbedChars is a conservative per-text limit for gemini-embedding-001.
	maxEmbedChars = 8000
)

// Config holds the settings a Client is built from.
type Config struct {
	APIKey              string
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int32
	Timeout             time.Duration
	MaxTokens           int32
	Temperature         float32
	MaxConcurrency      int64  // Backend calls in flight across all pipeline runs
	BaseURL             string // Overrides the API endpoint; empty uses the public Gemini API
}

// Client talks to the Gemini API for text generation and embeddings.
// It is safe for concurrent use.
type Client struct {
	cfg     Config
	gClient *genai.Client
	sem     *semaphore.Weighted
	log     *slog.Logger
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens      int32         // Maximum number of tokens to generate
	Temperature    float32       // Temperature for randomness (0.0 to 1.0)
	Model          string        // Model to use (optional, defaults to client's model)
	ResponseSchema *genai.Schema // Optional: schema for structured JSON output
}

// NewClient creates a new LLM client from cfg.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if log == nil {
		log = logger.Get()
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gClient, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		cfg:     cfg,
		gClient: gClient,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrency),
		log:     log,
	}, nil
}

// ModelName returns the generation model used by this client
func (c *Client) ModelName() string {
	return c.cfg.Model
}

// EmbeddingModelName returns the embedding model used by this client
func (c *Client) EmbeddingModelName() string {
	return c.cfg.EmbeddingModel
}

// Close releases client resources.
func (c *Client) Close() {
	// The genai client holds no resources that need explicit release
}

// GenerateText generates text using the LLM with specified options.
// Failures are returned as *Error so callers can tell transient from permanent.
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", &Error{Op: "generate", Err: fmt.Errorf("prompt cannot be empty")}
	}

	// Determine which model to use
	modelName := c.cfg.Model
	if options.Model != "" {
		modelName = options.Model
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = maxTokens
	}
	temp := options.Temperature
	if temp <= 0 {
		temp = c.cfg.Temperature
	}
	if temp > 0 {
		config.Temperature = &temp
	}
	if options.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = options.ResponseSchema
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", classify("generate", err)
	}
	defer c.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.gClient.Models.GenerateContent(callCtx, modelName, contents, config)
	if err != nil {
		c.log.Debug("Generation call failed", "model", modelName, "elapsed", time.Since(start), "error", err)
		return "", classify("generate", err)
	}

	text := resp.Text()
	if text == "" {
		return "", &Error{Op: "generate", Err: fmt.Errorf("empty response from LLM")}
	}

	c.log.Debug("Generation call completed", "model", modelName, "elapsed", time.Since(start), "chars", len(text))
	return text, nil
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	dims := c.cfg.EmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	vectors := make([][]float64, 0, len(texts))
	for _, batch := range batches(texts, maxEmbedBatch) {
		contents := make([]*genai.Content, len(batch))
		for i, text := range batch {
			contents[i] = &genai.Content{
				Parts: []*genai.Part{{Text: truncateRunes(text, maxEmbedChars)}},
				Role:  "user",
			}
		}

		embeddings, err := c.embedBatch(ctx, contents, config)
		if err != nil {
			return nil, err
		}
		if len(embeddings) != len(batch) {
			return nil, &Error{Op: "embed", Err: fmt.Errorf("expected %d embeddings, got %d", len(batch), len(embeddings))}
		}
		vectors = append(vectors, embeddings...)
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, contents []*genai.Content, config *genai.EmbedContentConfig) ([][]float64, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, classify("embed", err)
	}
	defer c.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.gClient.Models.EmbedContent(callCtx, c.cfg.EmbeddingModel, contents, config)
	if err != nil {
		return nil, classify("embed", err)
	}
	if resp == nil {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("no embedding values returned from API")}
	}

	out := make([][]float64, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, &Error{Op: "embed", Err: fmt.Errorf("no embedding values returned from API")}
		}
		// Convert float32 to float64
		values := make([]float64, len(e.Values))
		for i, val := range e.Values {
			values[i] = float64(val)
		}
		out = append(out, values)
	}
	return out, nil
}

// CosineSimilarity calculates the cosine similarity between two embeddings.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	normA, normB := floats.Norm(a, 2), floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}

// Centroid returns the element-wise mean of vectors. Vectors whose length
// differs from the first are skipped.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	sum := make([]float64, len(vectors[0]))
	n := 0
	for _, v := range vectors {
		if len(v) != len(sum) {
			continue
		}
		floats.Add(sum, v)
		n++
	}
	if n == 0 {
		return nil
	}
	floats.Scale(1/float64(n), sum)
	return sum
}

func batches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
