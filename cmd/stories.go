package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"github.com/k-sakQA/Othello-for-Android/internal/planner"
	"github.com/k-sakQA/Othello-for-Android/internal/routefile"
	"github.com/k-sakQA/Othello-for-Android/internal/story"
)

// newStoriesCmd creates and configures the `stories` command.
func newStoriesCmd() *cobra.Command {
	var storiesPath, url, out string

	storiesCmd := &cobra.Command{
		Use:     "stories",
		Aliases: []string{"run-stories"},
		Short:   "Runs one-shot story checks and writes their results",
		Example: `  othello stories --stories stories.json --url https://example.com
  othello run-stories --stories stories.yaml --out results/login.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			if !cfg.HasLLMKey() {
				return fmt.Errorf("no LLM API key configured (set OTHELLO_LLM_API_KEY); story checks need a planner and an evaluator")
			}
			stories, err := routefile.LoadStories(storiesPath)
			if err != nil {
				return err
			}
			if out == "" {
				out = routefile.DefaultResultsPath(cfg.Stories.OutputDir, time.Now())
			}

			comps, err := newComponents(ctx, cfg, logger, componentOptions{device: true, llm: true, store: true, session: true})
			if err != nil {
				return err
			}
			defer comps.Close()

			vis, err := selectVision(cfg, logger, comps.device, comps.llm)
			if err != nil {
				return err
			}
			runner := story.NewRunner(logger, story.Deps{
				Device:    comps.device,
				Vision:    vis,
				Planner:   planner.NewStoryLLM(logger, comps.llm),
				Evaluator: planner.NewEvaluator(logger, comps.llm),
				Session:   comps.bootstrapper(),
			})

			started := time.Now()
			var results []schemas.StoryResult
			runErr := runWithMetrics(ctx, cfg, logger, func(ctx context.Context) error {
				var err error
				results, err = runner.Run(ctx, stories, story.Params{URL: url})
				return err
			})
			comps.recordRun(ctx, schemas.RunStories, url, started, len(results), runErr)
			if runErr != nil {
				return runErr
			}

			if err := routefile.SaveResults(out, results); err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Failed() {
					failed++
				}
			}
			logger.Info("Story results saved", zap.String("path", out), zap.Int("stories", len(results)), zap.Int("failed", failed))
			fmt.Fprintf(cmd.OutOrStdout(), "Story results saved: %s (%d stories, %d failed)\n", out, len(results), failed)
			return nil
		},
	}

	storiesCmd.Flags().StringVarP(&storiesPath, "stories", "s", "", "Story batch file, JSON array or YAML list of {id, story} (required)")
	storiesCmd.Flags().StringVar(&url, "url", "", "URL to open before the first story")
	storiesCmd.Flags().StringVarP(&out, "out", "o", "", "Results output path (default results/story-results-<timestamp>.json)")
	_ = storiesCmd.MarkFlagRequired("stories")
	return storiesCmd
}
