// Package replayer re-executes a recorded route against a device.
package replayer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/action"
	"github.com/k-sakQA/Othello-for-Android/internal/auth"
)

// Deps are the capabilities a replay uses. Session is optional.
type Deps struct {
	Device  schemas.Device
	Session auth.Bootstrapper
}

// Params describe one replay. An empty URL replays from the current screen.
type Params struct {
	URL string
}

// Replayer executes route steps in index order and stops on the first failure.
type Replayer struct {
	logger *zap.Logger
	deps   Deps
}

// New creates a Replayer.
func New(logger *zap.Logger, deps Deps) *Replayer {
	return &Replayer{logger: logger.Named("replayer"), deps: deps}
}

// Run replays route. It returns the number of steps that completed, which is
// len(route.Steps) on success.
func (r *Replayer) Run(ctx context.Context, route *schemas.Route, p Params) (int, error) {
	if route == nil {
		return 0, fmt.Errorf("no route to replay")
	}
	if err := route.Validate(); err != nil {
		return 0, err
	}
	log := r.logger.With(zap.String("route_id", route.ID))

	if r.deps.Session != nil {
		if _, err := r.deps.Session.PushIfPresent(ctx); err != nil {
			return 0, fmt.Errorf("session bootstrap failed: %w", err)
		}
	}
	if p.URL != "" {
		if err := r.deps.Device.OpenURL(ctx, p.URL); err != nil {
			return 0, err
		}
	}

	executor := action.NewExecutor(r.logger, r.deps.Device)
	steps := route.OrderedSteps()
	log.Info("Replay started", zap.Int("steps", len(steps)), zap.String("url", p.URL))

	for done, step := range steps {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := executor.ExecuteStep(ctx, step); err != nil {
			log.Warn("Replay step failed", zap.Int("index", step.Index), zap.Error(err))
			return done, fmt.Errorf("step %d (%s): %w", step.Index, step.Action, err)
		}
		log.Debug("Step replayed", zap.Int("index", step.Index), zap.String("action", string(step.Action)))
	}

	log.Info("Replay complete", zap.Int("steps", len(steps)))
	return len(steps), nil
}
