package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/explorer"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"github.com/k-sakQA/Othello-for-Android/internal/routefile"
)

type exploreFlags struct {
	url      string
	intent   string
	maxSteps int
	out      string
}

// newExploreCmd creates and configures the `explore` command.
func newExploreCmd() *cobra.Command {
	var f exploreFlags

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Explores a web app with a planner and records the route",
		Example: `  othello explore --url https://example.com --intent "log in and open the order list"
  othello explore --url https://example.com --intent "search for shoes" --max-steps 5 --out routes/search.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			maxSteps := cfg.Explore.MaxSteps
			if cmd.Flags().Changed("max-steps") {
				if f.maxSteps <= 0 {
					return fmt.Errorf("--max-steps must be a positive integer")
				}
				maxSteps = f.maxSteps
			}
			out := f.out
			if out == "" {
				out = routefile.DefaultRoutePath(cfg.Explore.OutputDir, time.Now())
			}

			comps, err := newComponents(ctx, cfg, logger, componentOptions{device: true, llm: true, store: true, session: true})
			if err != nil {
				return err
			}
			defer comps.Close()

			if comps.llm == nil {
				logger.Warn("No LLM API key configured; using the manual planner and no screen analysis")
			}
			vis, err := selectVision(cfg, logger, comps.device, comps.llm)
			if err != nil {
				return err
			}
			plan, err := selectPlanner(cfg, logger, comps.llm, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			exp := explorer.New(logger, explorer.Deps{
				Device:  comps.device,
				Vision:  vis,
				Planner: plan,
				Session: comps.bootstrapper(),
			}, explorer.Options{MaxSteps: maxSteps, StagnationLimit: cfg.Explore.StagnationLimit})

			started := time.Now()
			var route *schemas.Route
			runErr := runWithMetrics(ctx, cfg, logger, func(ctx context.Context) error {
				var err error
				route, err = exp.Run(ctx, explorer.Params{URL: f.url, Intent: f.intent})
				return err
			})

			steps := 0
			if route != nil {
				steps = len(route.Steps)
			}
			comps.recordRun(ctx, schemas.RunExplore, f.url, started, steps, runErr)

			// A failed run still leaves a replayable prefix worth keeping.
			if route != nil && (runErr == nil || steps > 0) {
				if err := routefile.SaveRoute(out, route); err != nil {
					if runErr != nil {
						logger.Error("Failed to save partial route", zap.Error(err))
						return runErr
					}
					return err
				}
				if runErr != nil {
					logger.Warn("Exploration aborted; partial route saved", zap.String("path", out), zap.Int("steps", steps))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Route saved: %s (%d steps)\n", out, steps)
				}
			}
			return runErr
		},
	}

	exploreCmd.Flags().StringVar(&f.url, "url", "", "Entry URL to open before exploring (required)")
	exploreCmd.Flags().StringVar(&f.intent, "intent", "", "What the planner should try to accomplish (required)")
	exploreCmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "Maximum number of executed steps (default from explore.max_steps)")
	exploreCmd.Flags().StringVarP(&f.out, "out", "o", "", "Route output path (default routes/route-<timestamp>.json)")
	_ = exploreCmd.MarkFlagRequired("url")
	_ = exploreCmd.MarkFlagRequired("intent")
	return exploreCmd
}
