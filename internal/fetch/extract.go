package fetch

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
)

// DefaultMinWords is the smallest article body accepted for summarizing.
const DefaultMinWords = 100

// Block-level elements considered as candidate text blocks. Only leaf blocks
// (those without nested candidates) are scored.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, pre, blockquote, td, dd, dt, figcaption, div, section, article"

// Elements that never carry readable prose.
const nonContentSelector = "script, style, noscript, template, iframe, svg, canvas, form, button, input, select, textarea, object, embed"

const (
	minDenseWords     = 8
	maxLinkDensity    = 0.33
	minTextRatio      = 0.2
	maxGapBlocks      = 2
	maxFallbackTitle  = 10
	spanLinkTolerance = 0.5
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
)

// Extractor turns fetched pages into cleaned article content.
type Extractor struct {
	minWords int
	log      *slog.Logger
}

// NewExtractor creates an Extractor that rejects bodies shorter than minWords.
func NewExtractor(minWords int, log *slog.Logger) *Extractor {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	if log == nil {
		log = logger.Get()
	}
	return &Extractor{minWords: minWords, log: log}
}

// textBlock is one leaf block of the page in document order.
type textBlock struct {
	sel         *goquery.Selection
	text        string
	words       int
	linkDensity float64
	heading     bool
	dense       bool
}

// Extract derives the article from doc. It never returns an empty body:
// pages below the word threshold fail with an extraction error.
func (e *Extractor) Extract(doc core.SourceDocument) (core.ExtractedContent, error) {
	if strings.EqualFold(doc.ContentType, "text/plain") {
		return e.extractPlain(doc)
	}
	if doc.ContentType != "" && !IsSupportedMediaType(doc.ContentType) {
		return core.ExtractedContent{}, core.Extraction(fmt.Sprintf("unsupported content type %s", doc.ContentType), nil)
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(doc.RawHTML))
	if err != nil {
		return core.ExtractedContent{}, core.Extraction("failed to parse HTML", err)
	}

	content := core.ExtractedContent{
		Title:       extractTitle(page),
		Author:      extractAuthor(page),
		PublishedAt: extractPublishedAt(page),
		Language:    extractLanguage(page),
	}

	page.Find(nonContentSelector).Remove()

	blocks := collectBlocks(page.Find("body"))
	selected := selectArticle(blocks)

	var paragraphs []string
	var fragment strings.Builder
	for _, b := range selected {
		paragraphs = append(paragraphs, b.text)
		content.WordCount += b.words
		if html, err := goquery.OuterHtml(b.sel); err == nil {
			fragment.WriteString(html)
			fragment.WriteString("\n")
		}
	}

	if content.WordCount < e.minWords {
		return core.ExtractedContent{}, core.Extraction(
			fmt.Sprintf("content too sparse: %d words of article text (minimum %d)", content.WordCount, e.minWords), nil)
	}

	content.BodyText = strings.Join(paragraphs, "\n\n")
	if content.Title == "" {
		content.Title = fallbackTitle(content.BodyText)
	}

	if markdown, err := htmltomarkdown.ConvertString(fragment.String()); err != nil {
		e.log.Warn("Markdown conversion failed", "url", doc.URL, "error", err)
	} else {
		content.Markdown = strings.TrimSpace(markdown)
	}

	e.log.Debug("Extracted article", "url", doc.URL, "blocks", len(selected), "words", content.WordCount)
	return content, nil
}

func (e *Extractor) extractPlain(doc core.SourceDocument) (core.ExtractedContent, error) {
	var paragraphs []string
	words := 0
	for _, chunk := range paragraphBreak.Split(doc.RawHTML, -1) {
		text := normalizeSpace(chunk)
		if text == "" {
			continue
		}
		paragraphs = append(paragraphs, text)
		words += len(strings.Fields(text))
	}
	if words < e.minWords {
		return core.ExtractedContent{}, core.Extraction(
			fmt.Sprintf("content too sparse: %d words of article text (minimum %d)", words, e.minWords), nil)
	}

	body := strings.Join(paragraphs, "\n\n")
	var title string
	if first := paragraphs[0]; len(strings.Fields(first)) <= 20 {
		title = first
	} else {
		title = fallbackTitle(body)
	}
	return core.ExtractedContent{
		Title:     title,
		BodyText:  body,
		Markdown:  body,
		Language:  "und",
		WordCount: words,
	}, nil
}

// collectBlocks returns the leaf text blocks under root in document order.
func collectBlocks(root *goquery.Selection) []textBlock {
	var blocks []textBlock
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		text := normalizeSpace(s.Text())
		if text == "" {
			return
		}

		words := len(strings.Fields(text))
		linkWords := len(strings.Fields(s.Find("a").Text()))
		b := textBlock{
			sel:         s,
			text:        text,
			words:       words,
			linkDensity: float64(linkWords) / float64(words),
			heading:     isHeading(s),
		}

		ratio := 1.0
		if html, err := goquery.OuterHtml(s); err == nil && len(html) > 0 {
			ratio = float64(len(text)) / float64(len(html))
		}
		b.dense = !b.heading && words >= minDenseWords && b.linkDensity <= maxLinkDensity && ratio >= minTextRatio
		blocks = append(blocks, b)
	})
	return blocks
}

// selectArticle picks the contiguous run of dense blocks carrying the most
// words, allowing up to maxGapBlocks sparse blocks between dense ones.
// Headings neither extend nor break a run.
func selectArticle(blocks []textBlock) []textBlock {
	bestStart, bestEnd, bestWords := -1, -1, 0
	curStart, curEnd, curWords, gap := -1, -1, 0, 0

	for i, b := range blocks {
		switch {
		case b.dense:
			if curStart < 0 {
				curStart, curWords = i, 0
			}
			curEnd = i
			curWords += b.words
			gap = 0
		case b.heading:
		default:
			if curStart >= 0 {
				gap++
				if gap > maxGapBlocks {
					curStart, curEnd, curWords, gap = -1, -1, 0, 0
				}
			}
		}
		if curStart >= 0 && curWords > bestWords {
			bestStart, bestEnd, bestWords = curStart, curEnd, curWords
		}
	}

	if bestStart < 0 {
		return nil
	}
	// Pull in a heading that directly introduces the run.
	if bestStart > 0 && blocks[bestStart-1].heading {
		bestStart--
	}

	var selected []textBlock
	for _, b := range blocks[bestStart : bestEnd+1] {
		if b.dense || b.heading || b.linkDensity < spanLinkTolerance {
			selected = append(selected, b)
		}
	}
	return selected
}

func isHeading(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// extractTitle tries to extract the title from the page.
func extractTitle(doc *goquery.Document) string {
	// Try common title tags
	if title := normalizeSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}

	// Fallback to OpenGraph title
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(ogTitle) != "" {
		return normalizeSpace(ogTitle)
	}

	// Fallback to h1
	return normalizeSpace(doc.Find("h1").First().Text())
}

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range []string{"meta[name='author']", "meta[property='article:author']", "meta[name='twitter:creator']"} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return normalizeSpace(v)
		}
	}
	return normalizeSpace(doc.Find("[rel='author']").First().Text())
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func extractPublishedAt(doc *goquery.Document) *time.Time {
	var candidates []string
	for _, sel := range []string{"meta[property='article:published_time']", "meta[name='date']", "meta[itemprop='datePublished']"} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			candidates = append(candidates, v)
		}
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		for _, layout := range publishedLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

// extractLanguage returns the primary language subtag, or "und" when the page
// does not declare one.
func extractLanguage(doc *goquery.Document) string {
	lang, _ := doc.Find("html").First().Attr("lang")
	if strings.TrimSpace(lang) == "" {
		lang, _ = doc.Find("meta[http-equiv='content-language'], meta[http-equiv='Content-Language']").First().Attr("content")
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_,"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return "und"
	}
	return lang
}

func fallbackTitle(body string) string {
	words := strings.Fields(body)
	if len(words) > maxFallbackTitle {
		return strings.Join(words[:maxFallbackTitle], " ") + "..."
	}
	return strings.Join(words, " ")
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
