package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
	"github.com/Ritesh-sh/Blog-AI/internal/pipeline"
	"github.com/Ritesh-sh/Blog-AI/internal/render"
	"github.com/Ritesh-sh/Blog-AI/internal/tui"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var (
		tone      string
		words     int
		user      string
		out       string
		noSave    bool
		noImage   bool
		verbose   bool
		showStage bool
		live      bool
	)

	cmd := &cobra.Command{
		Use:   "generate <url>",
		Short: "Generate a blog post from an article URL",
		Long: `Generate a blog post from an article URL.

The article is fetched, analysed and rewritten by Gemini, then refined for
search. The result is printed as Markdown, or written to --out where the file
extension (.md, .html, .pdf) picks the format.

Examples:
  blogai generate https://go.dev/blog/pipelines
  blogai generate --tone casual --words 600 https://go.dev/blog/pipelines
  blogai generate --out pipelines.pdf https://go.dev/blog/pipelines`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			cfg, err := loadConfig(level)
			if err != nil {
				return err
			}

			var format render.Format
			if out != "" {
				format, err = formatFromPath(out)
				if err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
			defer stop()

			w := cmd.OutOrStdout()
			builder := pipeline.NewBuilder(cfg)
			if noSave {
				builder = builder.WithoutHistory()
			}
			if noImage {
				builder = builder.WithoutImages()
			}
			var progress *tui.Progress
			switch {
			case live:
				progress = tui.StartProgress(ctx, cmd.ErrOrStderr(), args[0])
				builder = builder.WithStageHook(progress.Stage)
			case showStage:
				builder = builder.WithStageHook(func(s core.Stage) {
					fmt.Fprintln(cmd.ErrOrStderr(), labelStyle.Render("→ "+string(s)))
				})
			}

			pipe, err := builder.Build(ctx)
			if err != nil {
				if progress != nil {
					progress.Finish(err)
				}
				return fmt.Errorf("failed to build pipeline: %w", err)
			}
			defer pipe.Close()

			output, err := pipe.Run(ctx, pipeline.Request{
				URL:       args[0],
				Tone:      tone,
				WordCount: words,
				UserID:    user,
			})
			if progress != nil {
				progress.Finish(err)
			}
			if err != nil {
				return describeFailure(err)
			}

			printSummary(w, output)

			if out == "" {
				fmt.Fprintln(w)
				fmt.Fprint(w, render.Markdown(output.Result))
				return nil
			}

			data, err := render.Render(output.Result, format)
			if err != nil {
				return err
			}
			path, err := render.WriteToFile(data, filepath.Dir(out), filepath.Base(out))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Saved to"), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tone, "tone", "t", "professional", "Writing tone: professional, casual, technical, conversational")
	cmd.Flags().IntVarP(&words, "words", "w", core.DefaultWordCount, "Target word count (clamped to 300-2000)")
	cmd.Flags().StringVarP(&user, "user", "u", "cli", "User id recorded in the history")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the blog to this file (.md, .html or .pdf)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not store the result in the history")
	cmd.Flags().BoolVar(&noImage, "no-image", false, "Skip featured image search")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline details")
	cmd.Flags().BoolVar(&showStage, "progress", true, "Print stage progress to stderr")
	cmd.Flags().BoolVar(&live, "tui", false, "Show a live progress view instead of progress lines")

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// formatFromPath picks the export format from a file extension.
func formatFromPath(path string) (render.Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer export format from %q: use a .md, .html or .pdf extension", path)
	}
	return render.ParseFormat(ext)
}

// describeFailure turns a pipeline failure into a one-line CLI error.
func describeFailure(err error) error {
	var se *core.StageError
	if errors.As(err, &se) {
		return errors.New(errorStyle.Render(fmt.Sprintf("✗ %s failed (%s)", se.Stage, se.Kind())) + ": " + se.Err.Error())
	}
	return err
}

func printSummary(w io.Writer, output *pipeline.Output) {
	result := output.Result
	lines := []string{
		titleStyle.Render(result.Blog.Title),
		"",
		fmt.Sprintf("%s %s (%.0f%%)", labelStyle.Render("Topic:"), result.Analysis.Topic, result.Analysis.Confidence*100),
		fmt.Sprintf("%s %d / %d target", labelStyle.Render("Words:"), result.WordCount, result.SEO.TargetWordCount),
		fmt.Sprintf("%s %d/100", labelStyle.Render("SEO score:"), result.SEO.Score),
		fmt.Sprintf("%s %s", labelStyle.Render("Keywords:"), strings.Join(result.Keywords.Primary, ", ")),
		fmt.Sprintf("%s %.1fs", labelStyle.Render("Processing time:"), result.ProcessingTime),
	}
	if result.Blog.FeaturedImage != nil {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Image:"), result.Blog.FeaturedImage.URL))
	}
	if output.RecordID != "" {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Saved as:"), output.RecordID))
	}
	for _, warning := range result.Warnings {
		lines = append(lines, warnStyle.Render("⚠ "+warning.String()))
	}
	fmt.Fprintln(w, summaryStyle.Render(strings.Join(lines, "\n")))
}
