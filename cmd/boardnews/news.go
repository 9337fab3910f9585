package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yolubot/boardnews/internal/article"
)

func newNewsCmd(root *rootOptions) *cobra.Command {
	var (
		scheduled  bool
		markPosted bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Run the news pipeline once and print the selected articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}

			ctx := cmd.Context()
			a, err := root.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			articles := a.pipeline.GetBoardGameNews(ctx, scheduled)
			if markPosted {
				if err := a.pipeline.MarkPosted(ctx, articles); err != nil {
					a.logger.Warn("recording posted articles", "err", err)
				}
			}

			if format == "json" {
				return writeArticlesJSON(cmd.OutOrStdout(), articles)
			}
			return writeArticlesText(cmd.OutOrStdout(), articles)
		},
	}

	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "use the scheduled search window instead of the manual one")
	cmd.Flags().BoolVar(&markPosted, "mark-posted", false, "record returned articles in the posted ledger")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")
	return cmd
}

func writeArticlesJSON(w io.Writer, articles []article.Article) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(articles)
}

func writeArticlesText(w io.Writer, articles []article.Article) error {
	for i, a := range articles {
		if a.IsNoNewsMessage {
			if _, err := fmt.Fprintf(w, "%s\n  %s\n", a.Title, a.Description); err != nil {
				return err
			}
			continue
		}

		tag := ""
		if a.IsFallback {
			tag = " (fallback)"
		}
		published := "unknown date"
		if a.HasDate() {
			published = a.PublishedAt.Format("2006-01-02 15:04")
		}
		_, err := fmt.Fprintf(w, "%d. [%.1f] %s%s\n   %s | %s\n   %s\n",
			i+1, a.CombinedScore, a.Title, tag, a.Source, published, a.URL)
		if err != nil {
			return err
		}
		if a.Description != "" {
			if _, err := fmt.Fprintf(w, "   %s\n", a.Description); err != nil {
				return err
			}
		}
	}
	return nil
}
