package cost

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// GeminiPricing represents the pricing for one Gemini model
type GeminiPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // USD
	OutputCostPer1MTokens float64 // USD
	MaxRequestsPerMinute  int
}

// DefaultModel is used for pricing when the configured model is unknown.
const DefaultModel = "gemini-2.5-flash"

const (
	promptOverheadTokens = 450 // instructions, schema and keyword lists
	jsonOverheadTokens   = 150
	tokensPerWord        = 1.35
	defaultExcerptBudget = 3000
)

// PricingTable contains Gemini list prices per 1M tokens
var PricingTable = map[string]GeminiPricing{
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
		MaxRequestsPerMinute:  1000,
	},
	"gemini-2.5-pro": {
		Model:                 "gemini-2.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
		MaxRequestsPerMinute:  150,
	},
	"gemini-2.0-flash": {
		Model:                 "gemini-2.0-flash",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
		MaxRequestsPerMinute:  2000,
	},
	"gemini-1.5-flash": {
		Model:                 "gemini-1.5-flash",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
		MaxRequestsPerMinute:  1000,
	},
}

// PricingFor returns the pricing of model, falling back to DefaultModel.
func PricingFor(model string) GeminiPricing {
	if p, ok := PricingTable[model]; ok {
		return p
	}
	return PricingTable[DefaultModel]
}

// EstimateTokenCount provides a rough estimation of token count for text.
// 1 token is roughly 3.5 characters of English text, rounded up.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	charCount := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(charCount) / 3.5))
}

// BlogCostEstimate is the estimated cost of one generation run
type BlogCostEstimate struct {
	URL             string  `json:"url"`
	Model           string  `json:"model"`
	TargetWordCount int     `json:"target_word_count"`
	ContentWords    int     `json:"content_words"`
	Measured        bool    `json:"measured"` // Content was fetched rather than guessed from the URL
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	InputCost       float64 `json:"input_cost"`
	OutputCost      float64 `json:"output_cost"`
	TotalCost       float64 `json:"total_cost"`
	Currency        string  `json:"currency"`
}

// EstimateOptions tunes EstimateBlogCost.
type EstimateOptions struct {
	Model              string
	ExcerptTokenBudget int
}

// EstimateBlogCost estimates the cost of generating a blog of targetWords from
// the article at url. When content is empty the article length is guessed
// from the URL.
func EstimateBlogCost(url, content string, targetWords int, opts EstimateOptions) *BlogCostEstimate {
	pricing := PricingFor(opts.Model)
	budget := opts.ExcerptTokenBudget
	if budget <= 0 {
		budget = defaultExcerptBudget
	}

	estimate := &BlogCostEstimate{
		URL:             url,
		Model:           pricing.Model,
		TargetWordCount: targetWords,
		Currency:        "USD",
	}

	if strings.TrimSpace(content) == "" {
		content = estimateArticleLength(url)
	} else {
		estimate.Measured = true
	}
	estimate.ContentWords = len(strings.Fields(content))

	excerptTokens := EstimateTokenCount(content)
	if excerptTokens > budget {
		excerptTokens = budget
	}
	estimate.InputTokens = excerptTokens + promptOverheadTokens
	estimate.OutputTokens = int(math.Ceil(float64(targetWords)*tokensPerWord)) + jsonOverheadTokens

	estimate.InputCost = float64(estimate.InputTokens) * pricing.InputCostPer1MTokens / 1000000
	estimate.OutputCost = float64(estimate.OutputTokens) * pricing.OutputCostPer1MTokens / 1000000
	estimate.TotalCost = estimate.InputCost + estimate.OutputCost
	return estimate
}

// estimateArticleLength provides a rough estimate of article content length
func estimateArticleLength(url string) string {
	urlLower := strings.ToLower(url)

	switch {
	case strings.Contains(urlLower, "twitter.com") || strings.Contains(urlLower, "x.com"):
		return strings.Repeat("word ", 50)
	case strings.Contains(urlLower, "github.com"):
		return strings.Repeat("word ", 300)
	case strings.Contains(urlLower, "news.ycombinator.com"):
		return strings.Repeat("word ", 100)
	case strings.Contains(urlLower, "medium.com") || strings.Contains(urlLower, "substack.com"):
		return strings.Repeat("word ", 1200)
	case strings.Contains(urlLower, "blog") || strings.Contains(urlLower, "post"):
		return strings.Repeat("word ", 800)
	case strings.Contains(urlLower, "arxiv.org"):
		return strings.Repeat("word ", 2000)
	case strings.Contains(urlLower, "documentation") || strings.Contains(urlLower, "docs"):
		return strings.Repeat("word ", 600)
	default:
		return strings.Repeat("word ", 700)
	}
}

// FormatEstimate formats the cost estimate for display
func (e *BlogCostEstimate) FormatEstimate() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Cost Estimation for %s\n", e.Model))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	source := "guessed from URL"
	if e.Measured {
		source = "measured"
	}
	sb.WriteString(fmt.Sprintf("   Source: %s\n", e.URL))
	sb.WriteString(fmt.Sprintf("   Article words: %d (%s)\n", e.ContentWords, source))
	sb.WriteString(fmt.Sprintf("   Target blog length: %d words\n\n", e.TargetWordCount))

	sb.WriteString(fmt.Sprintf("   Input tokens: %d (~$%.6f)\n", e.InputTokens, e.InputCost))
	sb.WriteString(fmt.Sprintf("   Output tokens: %d (~$%.6f)\n", e.OutputTokens, e.OutputCost))
	sb.WriteString(fmt.Sprintf("   Total estimated cost: $%.6f\n", e.TotalCost))

	return sb.String()
}
