package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"github.com/k-sakQA/Othello-for-Android/internal/replayer"
	"github.com/k-sakQA/Othello-for-Android/internal/routefile"
)

// newReplayCmd creates and configures the `replay` command.
func newReplayCmd() *cobra.Command {
	var routePath, url string

	replayCmd := &cobra.Command{
		Use:     "replay",
		Short:   "Replays a recorded route in step order",
		Example: `  othello replay --route routes/route-2026-01-01T00-00-00-000Z.json --url https://example.com`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			route, err := routefile.LoadRoute(routePath)
			if err != nil {
				return err
			}

			comps, err := newComponents(ctx, cfg, logger, componentOptions{device: true, store: true, session: true})
			if err != nil {
				return err
			}
			defer comps.Close()

			rep := replayer.New(logger, replayer.Deps{Device: comps.device, Session: comps.bootstrapper()})

			started := time.Now()
			done := 0
			runErr := runWithMetrics(ctx, cfg, logger, func(ctx context.Context) error {
				var err error
				done, err = rep.Run(ctx, route, replayer.Params{URL: url})
				return err
			})
			comps.recordRun(ctx, schemas.RunReplay, url, started, done, runErr)
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Replay complete: %d steps\n", done)
			return nil
		},
	}

	replayCmd.Flags().StringVarP(&routePath, "route", "r", "", "Route file to replay (required)")
	replayCmd.Flags().StringVar(&url, "url", "", "URL to open before the first step")
	_ = replayCmd.MarkFlagRequired("route")
	return replayCmd
}
