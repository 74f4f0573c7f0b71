// Package story runs batches of independent one-shot story checks. Each story
// is planned, acted on once and evaluated against the screens before and
// after the action.
package story

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/action"
	"github.com/k-sakQA/Othello-for-Android/internal/auth"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
)

// Deps are the capabilities a batch uses. Session is optional.
type Deps struct {
	Device    schemas.Device
	Vision    schemas.Vision
	Planner   schemas.StoryPlanner
	Evaluator schemas.Evaluator
	Session   auth.Bootstrapper
}

// Params describe one batch. An empty URL starts from the current screen.
type Params struct {
	URL string
}

// Runner executes stories in input order.
type Runner struct {
	logger *zap.Logger
	deps   Deps
}

// NewRunner creates a Runner.
func NewRunner(logger *zap.Logger, deps Deps) *Runner {
	return &Runner{logger: logger.Named("story_runner"), deps: deps}
}

// Run returns exactly one result per story, in input order. Failures inside a
// story are recorded on its result and never stop the batch; the returned
// error only reports a failed session bootstrap or navigation before the
// first story.
func (r *Runner) Run(ctx context.Context, stories []schemas.UserStory, p Params) ([]schemas.StoryResult, error) {
	if r.deps.Session != nil {
		if _, err := r.deps.Session.PushIfPresent(ctx); err != nil {
			return nil, fmt.Errorf("session bootstrap failed: %w", err)
		}
	}
	if p.URL != "" {
		if err := r.deps.Device.OpenURL(ctx, p.URL); err != nil {
			return nil, err
		}
	}

	executor := action.NewExecutor(r.logger, r.deps.Device)
	results := make([]schemas.StoryResult, 0, len(stories))
	failed := 0
	for _, s := range stories {
		res := r.runOne(ctx, executor, s)
		if res.Failed() {
			failed++
			observability.RecordStory(observability.OutcomeFailure)
		} else {
			observability.RecordStory(observability.OutcomeSuccess)
		}
		results = append(results, res)
	}

	r.logger.Info("Story batch complete", zap.Int("stories", len(stories)), zap.Int("failed", failed))
	return results, nil
}

// runOne fills the result as the pipeline progresses so a failure keeps
// whatever was decided before it.
func (r *Runner) runOne(ctx context.Context, executor *action.Executor, s schemas.UserStory) (res schemas.StoryResult) {
	res = schemas.StoryResult{ID: s.ID, Story: s.Story}
	log := r.logger.With(zap.String("story_id", s.ID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("Story panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			res.Evaluation = nil
			res.Error = fmt.Sprintf("panic: %v", p)
		}
	}()

	evaluation, err := r.pipeline(ctx, executor, s, &res)
	if err != nil {
		log.Warn("Story failed", zap.Error(err))
		res.Error = err.Error()
		return res
	}
	res.Evaluation = &evaluation
	log.Info("Story evaluated",
		zap.Bool("result", evaluation.Result),
		zap.Float64("confidence", evaluation.Confidence))
	return res
}

func (r *Runner) pipeline(ctx context.Context, executor *action.Executor, s schemas.UserStory, res *schemas.StoryResult) (schemas.StoryEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return schemas.StoryEvaluation{}, err
	}

	before, err := r.observe(ctx, "before")
	if err != nil {
		return schemas.StoryEvaluation{}, err
	}

	decision, err := r.deps.Planner.Decide(ctx, schemas.StoryPlanContext{
		Story:     s.Story,
		Elements:  before,
		StepIndex: 0,
	})
	if err != nil {
		return schemas.StoryEvaluation{}, fmt.Errorf("planner failed: %w", err)
	}
	res.Action = &decision

	if !decision.IsFinish() {
		if err := executor.ExecuteDecision(ctx, decision); err != nil {
			return schemas.StoryEvaluation{}, fmt.Errorf("%s failed: %w", decision.Action, err)
		}
	}

	after, err := r.observe(ctx, "after")
	if err != nil {
		return schemas.StoryEvaluation{}, err
	}

	evaluation, err := r.deps.Evaluator.Evaluate(ctx, schemas.EvaluationContext{
		Story:          s.Story,
		BeforeElements: before,
		AfterElements:  after,
	})
	if err != nil {
		return schemas.StoryEvaluation{}, fmt.Errorf("evaluator failed: %w", err)
	}
	return evaluation, nil
}

// observe captures and analyzes the current screen.
func (r *Runner) observe(ctx context.Context, phase string) ([]schemas.UIElement, error) {
	screenshot, err := r.deps.Device.CaptureScreenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s screenshot failed: %w", phase, err)
	}
	elements, err := r.deps.Vision.Analyze(ctx, screenshot)
	if err != nil {
		return nil, fmt.Errorf("%s screen analysis failed: %w", phase, err)
	}
	return elements, nil
}
