// Package prompt assembles generation requests and renders them into model
// prompts. Everything here is pure: no I/O and no clocks.
package prompt

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/cost"
)

// DefaultExcerptTokenBudget fits comfortably inside Gemini flash context
// windows while leaving room for instructions.
const DefaultExcerptTokenBudget = 3000

const charsPerToken = 3.5

// Options configures Build.
type Options struct {
	ExcerptTokenBudget int
	GenericTopic       string
}

// Input gathers the upstream stage outputs.
type Input struct {
	SourceURL string
	Content   core.ExtractedContent
	Keywords  core.KeywordSet
	Analysis  core.ContentAnalysis
	Tone      core.Tone
	WordCount int
}

// Build creates the GenerationRequest for one pipeline run. Word counts
// outside the accepted range are clamped, never rejected; an unknown tone is
// an InvalidInput error.
func Build(in Input, opts Options) (core.GenerationRequest, error) {
	tone := in.Tone
	if tone == "" {
		tone = core.ToneProfessional
	}
	if !tone.Valid() {
		return core.GenerationRequest{}, core.InvalidInput(fmt.Sprintf("unsupported tone %q", tone), nil)
	}

	budget := opts.ExcerptTokenBudget
	if budget <= 0 {
		budget = DefaultExcerptTokenBudget
	}

	primary, secondary := RankedKeywords(in.Keywords)

	return core.GenerationRequest{
		SourceURL:         in.SourceURL,
		Title:             strings.TrimSpace(in.Content.Title),
		ContentExcerpt:    Excerpt(in.Content.BodyText, budget),
		PrimaryKeywords:   primary,
		SecondaryKeywords: secondary,
		Topic:             topicFor(in.Analysis, in.Keywords, opts.GenericTopic),
		Intent:            in.Analysis.Intent,
		Summary:           in.Analysis.Summary,
		Language:          in.Content.Language,
		Tone:              tone,
		TargetWordCount:   ClampWordCount(in.WordCount),
	}, nil
}

// ClampWordCount forces n into [MinWordCount, MaxWordCount]. Zero or negative
// values select the default.
func ClampWordCount(n int) int {
	switch {
	case n <= 0:
		return core.DefaultWordCount
	case n < core.MinWordCount:
		return core.MinWordCount
	case n > core.MaxWordCount:
		return core.MaxWordCount
	default:
		return n
	}
}

// Excerpt returns the leading part of text whose estimated token count fits
// budget, cut at a sentence or word boundary.
func Excerpt(text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget <= 0 || cost.EstimateTokenCount(text) <= budget {
		return text
	}

	runes := []rune(text)
	maxRunes := int(float64(budget) * charsPerToken)
	if maxRunes > len(runes) {
		maxRunes = len(runes)
	}
	cut := string(runes[:maxRunes])

	// Prefer ending on a full sentence if one ends in the last fifth.
	if i := strings.LastIndexAny(cut, ".!?"); i >= 0 && i >= len(cut)*4/5 {
		return strings.TrimSpace(cut[:i+1])
	}
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		return strings.TrimSpace(cut[:i])
	}
	return cut
}

// RankedKeywords deduplicates keywords case-insensitively while preserving
// rank order. A keyword already in primary never reappears in secondary.
func RankedKeywords(set core.KeywordSet) (primary, secondary []string) {
	seen := make(map[string]bool)
	add := func(list []string) []string {
		out := []string{}
		for _, k := range list {
			k = strings.TrimSpace(k)
			key := strings.ToLower(k)
			if k == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, k)
		}
		return out
	}
	primary = add(set.Primary)
	secondary = add(set.Secondary)
	return primary, secondary
}

func topicFor(analysis core.ContentAnalysis, keywords core.KeywordSet, generic string) string {
	if generic == "" {
		generic = "General"
	}
	switch {
	case analysis.Topic != "":
		return analysis.Topic
	case keywords.TopicLabel != "":
		return keywords.TopicLabel
	default:
		return generic
	}
}
