package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPruneCmd(root *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete posted-ledger entries older than --days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}

			ctx := cmd.Context()
			a, err := root.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.ledger == nil {
				return errors.New("prune: no storage backend configured")
			}

			before := time.Now().UTC().AddDate(0, 0, -days)
			n, err := a.ledger.Prune(ctx, before)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			a.logger.Info("pruned posted ledger", "removed", n, "before", before.Format(time.RFC3339))
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries posted before %s\n", n, before.Format(time.DateOnly))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "retention in days")
	return cmd
}
