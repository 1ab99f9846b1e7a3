// Package seo refines generated blogs for search: meta description bounds,
// tag normalisation, keyword coverage and an overall score.
package seo

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

// Options configures a Processor.
type Options struct {
	MetaMin int // Characters
	MetaMax int
	MaxTags int
}

// DefaultOptions returns the SEO defaults.
func DefaultOptions() Options {
	return Options{MetaMin: 120, MetaMax: 160, MaxTags: 10}
}

// Keyword density window considered healthy.
const (
	minDensity      = 0.005
	maxDensity      = 0.03
	targetTolerance = 0.25
	minTitleChars   = 30
	maxTitleChars   = 70
)

// Processor is stateless; Process is idempotent.
type Processor struct {
	opts Options
}

// New creates a Processor. Zero option fields take their defaults.
func New(opts Options) *Processor {
	def := DefaultOptions()
	if opts.MetaMin <= 0 {
		opts.MetaMin = def.MetaMin
	}
	if opts.MetaMax <= 0 {
		opts.MetaMax = def.MetaMax
	}
	if opts.MetaMax < opts.MetaMin {
		opts.MetaMax = opts.MetaMin
	}
	if opts.MaxTags <= 0 {
		opts.MaxTags = def.MaxTags
	}
	return &Processor{opts: opts}
}

// Process returns a refined copy of blog and its SEO report. Body prose is
// never modified; keywords missing from it are added to the tags instead.
func (p *Processor) Process(blog core.GeneratedBlog, keywords core.KeywordSet, targetWordCount int) (core.GeneratedBlog, core.SEOReport) {
	out := blog.Clone()
	out.Title = normalizeSpace(out.Title)
	out.MetaDescription = p.metaDescription(out)

	report := p.Analyze(out, keywords, targetWordCount)
	out.Tags = p.tags(out.Tags, report.MissingKeywords)

	return out, report
}

// Analyze computes the SEO report of blog without changing it.
func (p *Processor) Analyze(blog core.GeneratedBlog, keywords core.KeywordSet, targetWordCount int) core.SEOReport {
	tokens := tokenize(blog.NarrativeText())
	report := core.SEOReport{
		WordCount:       len(tokens),
		TargetWordCount: targetWordCount,
		KeywordDensity:  make(map[string]float64),
	}
	if targetWordCount > 0 {
		diff := math.Abs(float64(report.WordCount - targetWordCount))
		report.WithinTarget = diff <= targetTolerance*float64(targetWordCount)
	}

	primaryHits := 0
	var primaryDensity float64
	for i, kw := range keywords.All() {
		kwTokens := tokenize(kw)
		if len(kwTokens) == 0 {
			continue
		}
		count := occurrences(tokens, kwTokens)
		density := 0.0
		if len(tokens) > 0 {
			density = float64(count*len(kwTokens)) / float64(len(tokens))
		}
		report.KeywordDensity[strings.ToLower(kw)] = round4(density)

		if i < len(keywords.Primary) {
			if count > 0 {
				primaryHits++
				primaryDensity += density
			} else {
				report.MissingKeywords = append(report.MissingKeywords, strings.ToLower(strings.TrimSpace(kw)))
			}
		}
	}

	report.Score = p.score(blog, report, len(keywords.Primary), primaryHits, primaryDensity)
	return report
}

func (p *Processor) score(blog core.GeneratedBlog, report core.SEOReport, primaryCount, primaryHits int, primaryDensity float64) int {
	score := 0.0

	if n := len([]rune(blog.Title)); n >= minTitleChars && n <= maxTitleChars {
		score += 15
	} else if n > 0 {
		score += 7
	}

	if n := len([]rune(blog.MetaDescription)); n >= p.opts.MetaMin && n <= p.opts.MetaMax {
		score += 15
	} else if n > 0 {
		score += 7
	}

	if primaryCount > 0 {
		score += 25 * float64(primaryHits) / float64(primaryCount)
		if primaryHits > 0 {
			avg := primaryDensity / float64(primaryHits)
			if avg >= minDensity && avg <= maxDensity {
				score += 15
			} else {
				score += 5
			}
		}
	} else {
		score += 25
	}

	switch {
	case len(blog.Sections) >= 3:
		score += 10
	case len(blog.Sections) >= 1:
		score += 5
	}

	if report.WithinTarget {
		score += 20
	}

	return int(math.Round(math.Min(score, 100)))
}

// metaDescription keeps a valid description, regenerates an empty or
// overlong one from the introduction, and pads a short one from the body.
func (p *Processor) metaDescription(blog core.GeneratedBlog) string {
	meta := normalizeSpace(blog.MetaDescription)
	if meta == "" || runeLen(meta) > p.opts.MetaMax {
		meta = clampWords(normalizeSpace(blog.Introduction), p.opts.MetaMax)
	}
	if runeLen(meta) < p.opts.MetaMin {
		rest := make([]string, 0, len(blog.Sections)+1)
		for _, s := range blog.Sections {
			rest = append(rest, s.Content)
		}
		rest = append(rest, blog.Conclusion)
		padded := clampWords(normalizeSpace(meta+" "+strings.Join(rest, " ")), p.opts.MetaMax)
		if runeLen(padded) >= p.opts.MetaMin {
			meta = padded
		}
	}
	return meta
}

// tags normalises and deduplicates tags and appends missing keywords.
// Missing keywords take their slots first, so a keyword the model already
// tagged is never cut by the cap; only the remaining model tags are truncated.
func (p *Processor) tags(tags []string, missing []string) []string {
	reserved := make(map[string]bool)
	var added []string
	for _, kw := range missing {
		kw = normalizeTag(kw)
		if kw == "" || reserved[kw] {
			continue
		}
		if len(added) == p.opts.MaxTags {
			break
		}
		reserved[kw] = true
		added = append(added, kw)
	}

	seen := make(map[string]bool)
	room := p.opts.MaxTags - len(added)
	var kept []string
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" || seen[t] || reserved[t] {
			continue
		}
		if len(kept) == room {
			break
		}
		seen[t] = true
		kept = append(kept, t)
	}
	return append(kept, added...)
}

func normalizeTag(t string) string {
	t = strings.TrimLeft(strings.TrimSpace(t), "#")
	return strings.ToLower(normalizeSpace(t))
}

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	tokenRegex      = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)?`)
)

func normalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

func tokenize(s string) []string {
	return tokenRegex.FindAllString(strings.ToLower(s), -1)
}

func occurrences(tokens, phrase []string) int {
	count := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j := range phrase {
			if tokens[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}

// clampWords cuts s to at most limit runes at a word boundary.
func clampWords(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := runes[:limit]
	end := len(cut)
	if !unicode.IsSpace(runes[limit]) {
		for end > 0 && !unicode.IsSpace(cut[end-1]) {
			end--
		}
		if end == 0 {
			end = len(cut)
		}
	}
	return strings.TrimRight(string(cut[:end]), " ,;:-")
}

func runeLen(s string) int { return len([]rune(s)) }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// SortedKeywords returns the keys of a density map in alphabetical order.
func SortedKeywords(density map[string]float64) []string {
	keys := make([]string, 0, len(density))
	for k := range density {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
