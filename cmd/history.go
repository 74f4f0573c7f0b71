package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/k-sakQA/Othello-for-Android/internal/observability"
)

// newHistoryCmd creates and configures the `history` command.
func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists recent explore, replay and story runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled {
				return fmt.Errorf("run history is disabled (set store.enabled to true)")
			}

			repo, err := openStore(ctx, cfg.Store, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer repo.Close()

			runs, err := repo.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tKIND\tSTATUS\tSTEPS\tDURATION\tURL\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime),
					r.Kind, r.Status, r.Steps,
					r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
					r.URL, r.Error)
			}
			return w.Flush()
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return historyCmd
}
