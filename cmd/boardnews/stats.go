package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yolubot/boardnews/internal/report"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var (
		format string
		limit  int
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show provider configuration and recently posted articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := root.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.summary(ctx, limit, check)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				return report.WriteText(out, summary)
			case "json":
				return report.WriteJSON(out, summary)
			case "html":
				return report.WriteHTML(out, summary)
			default:
				return fmt.Errorf("unknown format %q (want text, json or html)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json, html)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent posts to show")
	cmd.Flags().BoolVar(&check, "check", false, "probe each enabled provider with a live query")
	return cmd
}
