// Package topics assigns a topic label, intent and lead summary to extracted
// articles.
package topics

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/llm"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

// Content intents.
const (
	IntentInformational = "informational"
	IntentTutorial      = "tutorial"
	IntentNews          = "news"
	IntentOpinion       = "opinion"
	IntentCommercial    = "commercial"
)

const (
	excerptWords         = 400
	minSummaryWords      = 5
	maxSummaryChars      = 600
	minIntentCueHits     = 2
	defaultTopN          = 3
	defaultSentences     = 3
	defaultMinConfidence = 0.35
)

// Embedder turns texts into vectors in a shared space.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Options configures an Analyzer.
type Options struct {
	MinConfidence    float64 // Below this the generic topic is used
	TopN             int     // Labels reported in Analysis.Topics
	SummarySentences int
}

// Analyzer classifies articles against a vocabulary. It keeps no state
// between calls.
type Analyzer struct {
	embedder Embedder
	vocab    Vocabulary
	opts     Options
	log      *slog.Logger
}

// New creates an Analyzer.
func New(embedder Embedder, vocab Vocabulary, opts Options, log *slog.Logger) *Analyzer {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = defaultMinConfidence
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = defaultSentences
	}
	if vocab.Generic == "" {
		vocab.Generic = DefaultGenericTopic
	}
	if log == nil {
		log = logger.Get()
	}
	return &Analyzer{embedder: embedder, vocab: vocab, opts: opts, log: log}
}

type topicScore struct {
	topic      Topic
	similarity float64
}

// Analyze embeds the title, lead summary and body excerpt, and picks the
// vocabulary label closest to their centroid. Low confidence degrades to the
// generic topic; only embedding failures are errors.
func (a *Analyzer) Analyze(ctx context.Context, content core.ExtractedContent) (core.ContentAnalysis, error) {
	summary := Summarize(content.BodyText, a.opts.SummarySentences)
	analysis := core.ContentAnalysis{
		Intent:        DetectIntent(content.Title + "\n" + content.BodyText),
		Summary:       summary,
		ContentLength: content.WordCount,
	}
	if analysis.ContentLength == 0 {
		analysis.ContentLength = len(strings.Fields(content.BodyText))
	}

	var signals []string
	for _, s := range []string{content.Title, summary, firstWords(content.BodyText, excerptWords)} {
		if strings.TrimSpace(s) != "" {
			signals = append(signals, s)
		}
	}
	if len(signals) == 0 || len(a.vocab.Topics) == 0 {
		return a.generic(analysis, 0), nil
	}

	texts := make([]string, 0, len(a.vocab.Topics)+len(signals))
	for _, t := range a.vocab.Topics {
		texts = append(texts, t.Text())
	}
	texts = append(texts, signals...)

	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return core.ContentAnalysis{}, core.Analysis("embedding backend unavailable", err)
	}
	if len(vectors) != len(texts) {
		return core.ContentAnalysis{}, core.Analysis(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)), nil)
	}

	n := len(a.vocab.Topics)
	centroid := llm.Centroid(vectors[n:])

	scores := make([]topicScore, n)
	for i, t := range a.vocab.Topics {
		scores[i] = topicScore{topic: t, similarity: llm.CosineSimilarity(centroid, vectors[i])}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].similarity != scores[j].similarity {
			return scores[i].similarity > scores[j].similarity
		}
		return scores[i].topic.Priority < scores[j].topic.Priority
	})

	best := scores[0]
	confidence := clamp01(best.similarity)
	if confidence < a.opts.MinConfidence {
		a.log.Debug("Topic confidence below threshold", "best", best.topic.Name, "confidence", confidence)
		return a.generic(analysis, confidence), nil
	}

	analysis.Topic = best.topic.Name
	analysis.Confidence = confidence
	for _, s := range scores {
		if len(analysis.Topics) >= a.opts.TopN || s.similarity < a.opts.MinConfidence {
			break
		}
		analysis.Topics = append(analysis.Topics, s.topic.Name)
	}
	return analysis, nil
}

func (a *Analyzer) generic(analysis core.ContentAnalysis, confidence float64) core.ContentAnalysis {
	analysis.Topic = a.vocab.Generic
	analysis.Confidence = confidence
	analysis.Topics = []string{a.vocab.Generic}
	analysis.Generic = true
	return analysis
}

var sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]?\s+`)

// Summarize returns up to n lead sentences of text, skipping fragments.
func Summarize(text string, n int) string {
	if n <= 0 {
		n = defaultSentences
	}
	var picked []string
	length := 0
	for _, paragraph := range strings.Split(text, "\n") {
		for _, sentence := range splitSentences(paragraph) {
			if len(strings.Fields(sentence)) < minSummaryWords {
				continue
			}
			if length+len(sentence) > maxSummaryChars && len(picked) > 0 {
				return strings.Join(picked, " ")
			}
			picked = append(picked, sentence)
			length += len(sentence) + 1
			if len(picked) == n {
				return strings.Join(picked, " ")
			}
		}
	}
	return strings.Join(picked, " ")
}

func splitSentences(paragraph string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(paragraph, -1) {
		if s := strings.TrimSpace(paragraph[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(paragraph[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

var intentCues = []struct {
	intent string
	cues   []*regexp.Regexp
}{
	{IntentTutorial, cueRegexps("how to", "step", "steps", "guide", "tutorial", "install", "example", "walkthrough", "let's")},
	{IntentNews, cueRegexps("announced", "announces", "today", "released", "launch", "launched", "according to", "reported", "yesterday")},
	{IntentOpinion, cueRegexps("i think", "i believe", "in my opinion", "we believe", "argue", "should", "my take")},
	{IntentCommercial, cueRegexps("buy", "price", "pricing", "discount", "offer", "purchase", "subscribe", "free trial", "deal")},
}

func cueRegexps(cues ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(cues))
	for i, c := range cues {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(c) + `\b`)
	}
	return out
}

// DetectIntent classifies text by counting cue phrases. Text without a clear
// signal is informational.
func DetectIntent(text string) string {
	lower := strings.ToLower(text)
	best, bestHits := IntentInformational, 0
	for _, group := range intentCues {
		hits := 0
		for _, re := range group.cues {
			hits += len(re.FindAllStringIndex(lower, -1))
		}
		if hits > bestHits {
			best, bestHits = group.intent, hits
		}
	}
	if bestHits < minIntentCueHits {
		return IntentInformational
	}
	return best
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
