package handlers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ritesh-sh/Blog-AI/internal/config"
	"github.com/Ritesh-sh/Blog-AI/internal/render"
	"github.com/Ritesh-sh/Blog-AI/internal/store"
)

// NewHistoryCmd creates the history command and its show subcommand
func NewHistoryCmd() *cobra.Command {
	var (
		user    string
		limit   int
		actions bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously generated blogs",
		Long: `List the blogs stored for a user, newest first.

Examples:
  blogai history
  blogai history --user alice --limit 5
  blogai history --actions
  blogai history show <id> --format html --out post.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("warn")
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := commandContext(cmd)
			w := cmd.OutOrStdout()
			if actions {
				entries, err := s.History(ctx, user, limit)
				if err != nil {
					return err
				}
				return printActions(w, entries)
			}

			records, err := s.List(ctx, user, limit)
			if err != nil {
				return err
			}
			return printRecords(w, records)
		},
	}

	cmd.PersistentFlags().StringVarP(&user, "user", "u", "cli", "User whose history is shown")
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "Maximum number of entries")
	cmd.Flags().BoolVar(&actions, "actions", false, "Show the action log instead of the blog list")

	cmd.AddCommand(newHistoryShowCmd(&user))

	return cmd
}

func newHistoryShowCmd(user *string) *cobra.Command {
	var (
		formatName string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print or export a stored blog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(formatName)
			if err != nil {
				return err
			}
			cfg, err := loadConfig("warn")
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			record, err := s.Get(commandContext(cmd), *user, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no blog %q for user %q", args[0], *user)
			}
			if err != nil {
				return err
			}

			data, err := render.Render(record.Result, format)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out == "" {
				if format == render.FormatPDF {
					return errors.New("pdf output needs --out")
				}
				_, err = w.Write(data)
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

	cmd.Flags().StringVarP(&formatName, "format", "f", string(render.FormatMarkdown), "Output format: md, html or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")

	return cmd
}

func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return s, nil
}

func printRecords(w io.Writer, records []store.RecordSummary) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No blogs yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGENERATED\tWORDS\tTITLE\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.GeneratedAt.Local().Format("2006-01-02 15:04"), r.WordCount, r.Title, r.SourceURL)
	}
	return tw.Flush()
}

func printActions(w io.Writer, actions []store.Action) error {
	if len(actions) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tRECORD\tTITLE")
	for _, a := range actions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.CreatedAt.Local().Format("2006-01-02 15:04"), a.Action, a.RecordID, a.Title)
	}
	return tw.Flush()
}
