// Package keywords ranks candidate phrases of an article by embedding
// similarity to the whole document.
package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/llm"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

// Embedder turns texts into vectors in a shared space.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Options configures an Extractor.
type Options struct {
	PrimaryCount    int
	SecondaryCount  int
	DedupeThreshold float64 // Candidates more similar than this to a kept keyword are dropped
	MaxCandidates   int     // Most frequent candidates sent for embedding
	MaxNGram        int
}

// DefaultOptions returns the keyword defaults.
func DefaultOptions() Options {
	return Options{
		PrimaryCount:    5,
		SecondaryCount:  10,
		DedupeThreshold: 0.85,
		MaxCandidates:   60,
		MaxNGram:        3,
	}
}

// Candidate is a phrase found in the text.
type Candidate struct {
	Phrase    string
	Frequency int
	FirstSeen int // Token offset of the first occurrence
}

// Extractor produces a KeywordSet from extracted content. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	embedder Embedder
	opts     Options
	log      *slog.Logger
}

// New creates an Extractor. Zero option fields take their defaults.
func New(embedder Embedder, opts Options, log *slog.Logger) *Extractor {
	def := DefaultOptions()
	if opts.PrimaryCount <= 0 {
		opts.PrimaryCount = def.PrimaryCount
	}
	if opts.SecondaryCount < 0 {
		opts.SecondaryCount = 0
	}
	if opts.DedupeThreshold <= 0 || opts.DedupeThreshold > 1 {
		opts.DedupeThreshold = def.DedupeThreshold
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = def.MaxCandidates
	}
	if opts.MaxNGram <= 0 {
		opts.MaxNGram = def.MaxNGram
	}
	if log == nil {
		log = logger.Get()
	}
	return &Extractor{embedder: embedder, opts: opts, log: log}
}

type scored struct {
	Candidate
	vector     []float64
	similarity float64
}

// Extract ranks keywords for content. An article with no usable candidates
// yields an empty set, not an error; only embedding failures are errors.
func (e *Extractor) Extract(ctx context.Context, content core.ExtractedContent) (core.KeywordSet, error) {
	result := core.KeywordSet{Primary: []string{}, Secondary: []string{}}

	candidates := Candidates(content.BodyText, e.opts.MaxNGram, e.opts.MaxCandidates)
	if len(candidates) == 0 {
		e.log.Debug("No keyword candidates found", "words", content.WordCount)
		return result, nil
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, documentText(content))
	for _, c := range candidates {
		texts = append(texts, c.Phrase)
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return core.KeywordSet{}, core.Analysis("embedding backend unavailable", err)
	}
	if len(vectors) != len(texts) {
		return core.KeywordSet{}, core.Analysis(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)), nil)
	}

	doc := vectors[0]
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{Candidate: c, vector: vectors[i+1], similarity: llm.CosineSimilarity(doc, vectors[i+1])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].similarity != ranked[j].similarity {
			return ranked[i].similarity > ranked[j].similarity
		}
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].Phrase < ranked[j].Phrase
	})

	kept := dedupe(ranked, e.opts.DedupeThreshold, e.opts.PrimaryCount+e.opts.SecondaryCount)

	var similaritySum float64
	for i, k := range kept {
		if i < e.opts.PrimaryCount {
			result.Primary = append(result.Primary, k.Phrase)
			similaritySum += k.similarity
		} else {
			result.Secondary = append(result.Secondary, k.Phrase)
		}
	}

	if len(result.Primary) > 0 {
		result.TopicLabel = result.Primary[0]
		result.ConfidenceScore = clamp01(similaritySum / float64(len(result.Primary)))
	}

	e.log.Debug("Extracted keywords", "candidates", len(candidates), "primary", len(result.Primary), "secondary", len(result.Secondary))
	return result, nil
}

// dedupe keeps the highest-ranked representative of each group of
// near-synonyms, stopping after limit keywords.
func dedupe(ranked []scored, threshold float64, limit int) []scored {
	var kept []scored
	for _, cand := range ranked {
		if len(kept) >= limit {
			break
		}
		duplicate := false
		for _, k := range kept {
			if llm.CosineSimilarity(cand.vector, k.vector) > threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, cand)
		}
	}
	return kept
}

var (
	tokenRegex   = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'’-]*`)
	segmentBreak = regexp.MustCompile(`[.,;:!?()\[\]{}"“”\n\r\t]+`)
)

// Candidates returns up to limit n-gram phrases (1..maxN words) ordered by
// frequency, then first occurrence. Phrases never start or end with a stop
// word and never span punctuation.
func Candidates(text string, maxN, limit int) []Candidate {
	if maxN <= 0 {
		maxN = 3
	}
	stopWords := getCommonStopWords()
	counts := make(map[string]*Candidate)

	offset := 0
	for _, segment := range segmentBreak.Split(strings.ToLower(text), -1) {
		tokens := tokenRegex.FindAllString(segment, -1)
		for i := range tokens {
			tokens[i] = strings.Trim(tokens[i], "'’-")
		}
		for i := range tokens {
			for n := 1; n <= maxN && i+n <= len(tokens); n++ {
				gram := tokens[i : i+n]
				if !validGram(gram, stopWords) {
					continue
				}
				phrase := strings.Join(gram, " ")
				if c, ok := counts[phrase]; ok {
					c.Frequency++
				} else {
					counts[phrase] = &Candidate{Phrase: phrase, Frequency: 1, FirstSeen: offset + i}
				}
			}
		}
		offset += len(tokens)
	}

	candidates := make([]Candidate, 0, len(counts))
	for _, c := range counts {
		candidates = append(candidates, *c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Frequency != candidates[j].Frequency {
			return candidates[i].Frequency > candidates[j].Frequency
		}
		if candidates[i].FirstSeen != candidates[j].FirstSeen {
			return candidates[i].FirstSeen < candidates[j].FirstSeen
		}
		return candidates[i].Phrase < candidates[j].Phrase
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func validGram(gram []string, stopWords map[string]bool) bool {
	first, last := gram[0], gram[len(gram)-1]
	if first == "" || last == "" || stopWords[first] || stopWords[last] {
		return false
	}
	if isNumeric(first) || isNumeric(last) {
		return false
	}
	if len(gram) == 1 && len([]rune(first)) < 3 {
		return false
	}
	for _, tok := range gram {
		if tok == "" {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func documentText(content core.ExtractedContent) string {
	if content.Title == "" {
		return content.BodyText
	}
	return content.Title + "\n\n" + content.BodyText
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

// getCommonStopWords returns words that never start or end a keyword.
func getCommonStopWords() map[string]bool {
	stopWords := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "were", "will", "with", "this", "but", "they",
		"have", "had", "what", "said", "each", "which", "she", "do", "how",
		"their", "if", "up", "out", "many", "then", "them", "these", "so",
		"some", "her", "would", "make", "like", "into", "him", "time", "two",
		"or", "not", "can", "you", "your", "we", "our", "us", "i", "me", "my",
		"all", "any", "more", "most", "other", "such", "no", "only", "own",
		"same", "than", "too", "very", "just", "also", "been", "being", "does",
		"did", "about", "after", "before", "over", "under", "again", "there",
		"here", "when", "where", "why", "who", "whom", "while", "should",
		"could", "may", "might", "must", "one", "new", "get", "use", "used",
		"using", "way", "well", "even", "because", "through", "between", "those",
	}

	stopWordsMap := make(map[string]bool)
	for _, word := range stopWords {
		stopWordsMap[word] = true
	}

	return stopWordsMap
}
