package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/cost"
	"github.com/Ritesh-sh/Blog-AI/internal/fetch"
	"github.com/Ritesh-sh/Blog-AI/internal/logger"
	"github.com/Ritesh-sh/Blog-AI/internal/pipeline"
	"github.com/Ritesh-sh/Blog-AI/internal/prompt"
)

// NewEstimateCmd creates the estimate command
func NewEstimateCmd() *cobra.Command {
	var (
		words   int
		noFetch bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "estimate <url>",
		Short: "Estimate the Gemini cost of generating a blog from a URL",
		Long: `Estimate the token usage and Gemini cost of a generation without running it.

The article is fetched and measured unless --no-fetch is given, in which case
its length is guessed from the URL. No API key is needed.

Examples:
  blogai estimate https://go.dev/blog/pipelines
  blogai estimate --words 1500 --no-fetch https://go.dev/blog/pipelines`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("warn")
			if err != nil {
				return err
			}

			url := args[0]
			if _, err := fetch.ValidateURL(url); err != nil {
				return err
			}

			var content string
			if !noFetch {
				log := logger.Get()
				fetcher := pipeline.NewFetcher(cfg, nil, log)
				doc, err := fetcher.Fetch(commandContext(cmd), url)
				if err == nil {
					var extracted core.ExtractedContent
					extracted, err = fetch.NewExtractor(cfg.Fetch.MinWords, log).Extract(doc)
					content = extracted.BodyText
				}
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("⚠ could not measure article, using URL heuristic: "+err.Error()))
				}
			}

			estimate := cost.EstimateBlogCost(url, content, prompt.ClampWordCount(words), cost.EstimateOptions{
				Model:              cfg.AI.Gemini.Model,
				ExcerptTokenBudget: cfg.Generation.ExcerptTokenBudget,
			})

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(estimate)
			}
			fmt.Fprint(w, estimate.FormatEstimate())
			return nil
		},
	}

	cmd.Flags().IntVarP(&words, "words", "w", core.DefaultWordCount, "Target word count (clamped to 300-2000)")
	cmd.Flags().BoolVar(&noFetch, "no-fetch", false, "Estimate from the URL alone without fetching the article")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the estimate as JSON")

	return cmd
}
