// Package explorer drives a planner-guided exploration of a web app and
// records the executed actions as a replayable route.
package explorer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/action"
	"github.com/k-sakQA/Othello-for-Android/internal/auth"
)

// Deps are the capabilities one exploration uses. Session is optional.
type Deps struct {
	Device  schemas.Device
	Vision  schemas.Vision
	Planner schemas.Planner
	Session auth.Bootstrapper
}

// Options bound a run.
type Options struct {
	// MaxSteps is the hard upper bound on executed steps.
	MaxSteps int
	// StagnationLimit ends the run once this many consecutive analyses after
	// an executed step return an unchanged screen. Zero disables the guard.
	StagnationLimit int
}

// Params describe one run.
type Params struct {
	URL    string
	Intent string
}

// Explorer runs the capture, analyze, decide, execute loop.
type Explorer struct {
	logger *zap.Logger
	deps   Deps
	opts   Options
	now    func() time.Time
	newID  func() string
}

// New creates an Explorer.
func New(logger *zap.Logger, deps Deps, opts Options) *Explorer {
	return &Explorer{
		logger: logger.Named("explorer"),
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run explores from p.URL until the planner finishes, MaxSteps is reached or
// the screen stagnates. A failed step aborts the run; the route recorded so
// far is returned together with the error so the caller can persist it.
func (e *Explorer) Run(ctx context.Context, p Params) (*schemas.Route, error) {
	route := &schemas.Route{
		ID:        e.newID(),
		CreatedAt: e.now().UTC(),
		Steps:     []schemas.RouteStep{},
	}
	log := e.logger.With(zap.String("route_id", route.ID))

	if p.URL == "" {
		return route, fmt.Errorf("explore requires a URL")
	}
	if e.deps.Session != nil {
		if _, err := e.deps.Session.PushIfPresent(ctx); err != nil {
			return route, fmt.Errorf("session bootstrap failed: %w", err)
		}
	}
	if err := e.deps.Device.OpenURL(ctx, p.URL); err != nil {
		return route, err
	}
	log.Info("Exploration started", zap.String("url", p.URL), zap.String("intent", p.Intent), zap.Int("max_steps", e.opts.MaxSteps))

	// One executor per run so the screen size is queried at most once.
	executor := action.NewExecutor(e.logger, e.deps.Device)
	guard := newStagnationGuard(e.opts.StagnationLimit)

	for stepIndex := 0; stepIndex < e.opts.MaxSteps; stepIndex++ {
		if err := ctx.Err(); err != nil {
			return route, err
		}

		screenshot, err := e.deps.Device.CaptureScreenshot(ctx)
		if err != nil {
			return route, fmt.Errorf("step %d: screenshot failed: %w", stepIndex, err)
		}
		elements, err := e.deps.Vision.Analyze(ctx, screenshot)
		if err != nil {
			return route, fmt.Errorf("step %d: screen analysis failed: %w", stepIndex, err)
		}
		if guard.Stalled(elements) {
			log.Info("Screen unchanged after repeated steps; ending exploration",
				zap.Int("step", stepIndex), zap.Int("limit", e.opts.StagnationLimit))
			break
		}

		decision, err := e.deps.Planner.Decide(ctx, schemas.PlannerContext{
			Intent:             p.Intent,
			StepIndex:          stepIndex,
			Elements:           elements,
			History:            append([]schemas.RouteStep(nil), route.Steps...),
			LastScreenshotPath: screenshot,
		})
		if err != nil {
			return route, fmt.Errorf("step %d: planner failed: %w", stepIndex, err)
		}
		if decision.IsFinish() {
			log.Info("Planner finished exploration", zap.Int("step", stepIndex), zap.String("notes", decision.Notes))
			break
		}

		if err := executor.ExecuteDecision(ctx, decision); err != nil {
			return route, fmt.Errorf("step %d (%s): %w", stepIndex, decision.Action, err)
		}
		route.Steps = append(route.Steps, decision.StepAt(stepIndex, screenshot))
		log.Debug("Step recorded", zap.Int("step", stepIndex), zap.String("action", string(decision.Action)))
	}

	log.Info("Exploration complete", zap.Int("steps", len(route.Steps)))
	return route, nil
}
