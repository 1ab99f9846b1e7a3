package core

import (
	"fmt"
	"strings"
	"time"
)

// Tone is the voice the generated blog is written in.
type Tone string

const (
	ToneProfessional   Tone = "professional"
	ToneCasual         Tone = "casual"
	ToneTechnical      Tone = "technical"
	ToneConversational Tone = "conversational"
)

// Tones lists every supported tone in display order.
func Tones() []Tone {
	return []Tone{ToneProfessional, ToneCasual, ToneTechnical, ToneConversational}
}

// Valid reports whether t is one of the supported tones.
func (t Tone) Valid() bool {
	for _, known := range Tones() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTone converts user input into a Tone. Empty input selects ToneProfessional.
func ParseTone(s string) (Tone, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ToneProfessional, nil
	}
	t := Tone(s)
	if !t.Valid() {
		return "", InvalidInput(fmt.Sprintf("unsupported tone %q (expected one of professional, casual, technical, conversational)", s), nil)
	}
	return t, nil
}

// Word count bounds accepted by the generator.
const (
	MinWordCount     = 300
	MaxWordCount     = 2000
	DefaultWordCount = 800
)

// SourceDocument is the raw page as fetched. Immutable once fetched.
type SourceDocument struct {
	URL         string    `json:"url"`          // Final URL after redirects
	RawHTML     string    `json:"raw_html"`     // Body decoded to UTF-8
	ContentType string    `json:"content_type"` // Media type reported by the server
	FetchedAt   time.Time `json:"fetched_at"`
}

// ExtractedContent is the cleaned article derived from a SourceDocument.
type ExtractedContent struct {
	Title       string     `json:"title"`
	BodyText    string     `json:"body_text"`
	Markdown    string     `json:"markdown,omitempty"` // Article region rendered as Markdown
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Language    string     `json:"language"`
	WordCount   int        `json:"word_count"`
}

// KeywordSet holds ranked keywords. Primary and secondary are disjoint.
type KeywordSet struct {
	Primary         []string `json:"primary_keywords"`
	Secondary       []string `json:"secondary_keywords"`
	TopicLabel      string   `json:"topic_label"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// All returns primary followed by secondary keywords.
func (k KeywordSet) All() []string {
	all := make([]string, 0, len(k.Primary)+len(k.Secondary))
	all = append(all, k.Primary...)
	return append(all, k.Secondary...)
}

// ContentAnalysis is the TopicAnalyzer output used to steer prompt construction.
type ContentAnalysis struct {
	Topic         string   `json:"topic"`
	Confidence    float64  `json:"confidence"`
	Topics        []string `json:"topics"`
	Intent        string   `json:"intent"`
	Summary       string   `json:"summary"`
	ContentLength int      `json:"content_length"`
	Generic       bool     `json:"generic"` // Confidence fell below the threshold
}

// GenerationRequest is the immutable payload handed to the generator.
type GenerationRequest struct {
	SourceURL         string   `json:"source_url"`
	Title             string   `json:"title"`
	ContentExcerpt    string   `json:"content_excerpt"`
	PrimaryKeywords   []string `json:"primary_keywords"`
	SecondaryKeywords []string `json:"secondary_keywords"`
	Topic             string   `json:"topic"`
	Intent            string   `json:"intent,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	Language          string   `json:"language,omitempty"`
	Tone              Tone     `json:"tone"`
	TargetWordCount   int      `json:"target_word_count"`
}

// Keywords returns the deduplicated keywords in rank order.
func (r GenerationRequest) Keywords() []string {
	all := make([]string, 0, len(r.PrimaryKeywords)+len(r.SecondaryKeywords))
	all = append(all, r.PrimaryKeywords...)
	return append(all, r.SecondaryKeywords...)
}

// BlogSection is one headed block of the generated post.
type BlogSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// FeaturedImage is optional; absence is a valid terminal state.
type FeaturedImage struct {
	URL          string `json:"url"`
	AltText      string `json:"alt_text,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// GeneratedBlog is built by the generator and refined by the SEO postprocessor.
type GeneratedBlog struct {
	Title           string         `json:"title"`
	MetaDescription string         `json:"meta_description"`
	Introduction    string         `json:"introduction"`
	Sections        []BlogSection  `json:"sections"`
	Conclusion      string         `json:"conclusion"`
	CTA             string         `json:"cta"`
	Tags            []string       `json:"tags"`
	FeaturedImage   *FeaturedImage `json:"featured_image,omitempty"`
}

// Clone returns a deep copy so refinements never alias the input.
func (b GeneratedBlog) Clone() GeneratedBlog {
	out := b
	out.Sections = append([]BlogSection(nil), b.Sections...)
	out.Tags = append([]string(nil), b.Tags...)
	if b.FeaturedImage != nil {
		img := *b.FeaturedImage
		out.FeaturedImage = &img
	}
	return out
}

// NarrativeText joins every prose field of the blog, one block per line.
func (b GeneratedBlog) NarrativeText() string {
	parts := []string{b.Title, b.Introduction}
	for _, s := range b.Sections {
		parts = append(parts, s.Heading, s.Content)
	}
	parts = append(parts, b.Conclusion, b.CTA)
	return strings.Join(parts, "\n")
}

// SEOReport summarizes keyword coverage and length conformance.
type SEOReport struct {
	WordCount       int                `json:"word_count"`
	TargetWordCount int                `json:"target_word_count"`
	WithinTarget    bool               `json:"within_target"` // Within ±25% of the target
	KeywordDensity  map[string]float64 `json:"keyword_density"`
	MissingKeywords []string           `json:"missing_keywords,omitempty"`
	Score           int                `json:"seo_score"`
}

// PipelineResult is the unit handed to history storage and returned to the caller.
// It is never mutated after assembly.
type PipelineResult struct {
	SourceURL      string          `json:"source_url"`
	Blog           GeneratedBlog   `json:"blog"`
	Keywords       KeywordSet      `json:"keywords"`
	Analysis       ContentAnalysis `json:"analysis"`
	SEO            SEOReport       `json:"seo"`
	WordCount      int             `json:"word_count"`
	ProcessingTime float64         `json:"processing_time"` // Seconds, Fetching..PostProcessing
	GeneratedAt    time.Time       `json:"generated_at"`
	Warnings       []Warning       `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning of the given kind was recorded.
func (r PipelineResult) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// Stage names a step of the orchestration state machine.
type Stage string

const (
	StageFetching       Stage = "fetching"
	StageExtracting     Stage = "extracting"
	StageAnalyzing      Stage = "analyzing"
	StagePrompting      Stage = "prompting"
	StageGenerating     Stage = "generating"
	StagePostProcessing Stage = "post_processing"
	StageImageFetching  Stage = "image_fetching"
	StageAssembled      Stage = "assembled"
)

// Stages lists the stages in execution order.
func Stages() []Stage {
	return []Stage{
		StageFetching, StageExtracting, StageAnalyzing, StagePrompting,
		StageGenerating, StagePostProcessing, StageImageFetching, StageAssembled,
	}
}
