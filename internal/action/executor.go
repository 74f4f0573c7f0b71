package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"go.uber.org/zap"
)

// Executor runs commands against a device. It is shared by the explore,
// replay and story loops; each loop owns one Executor for the length of a run
// so the screen size is only queried once.
type Executor struct {
	logger   *zap.Logger
	device   schemas.Device
	resolver *Resolver
}

var _ CommandVisitor = (*Executor)(nil)

// NewExecutor creates an Executor bound to device.
func NewExecutor(logger *zap.Logger, device schemas.Device) *Executor {
	return &Executor{
		logger:   logger.Named("executor"),
		device:   device,
		resolver: NewResolver(device),
	}
}

// Execute runs cmd once. Failures are returned as-is and never retried.
func (e *Executor) Execute(ctx context.Context, cmd Command) error {
	err := cmd.Accept(ctx, e)
	observability.RecordAction(string(cmd.Kind()), err)
	if err != nil {
		e.logger.Debug("Action failed", zap.String("action", string(cmd.Kind())), zap.Error(err))
	}
	return err
}

// ExecuteStep compiles and runs a recorded route step.
func (e *Executor) ExecuteStep(ctx context.Context, step schemas.RouteStep) error {
	cmd, err := FromStep(step)
	if err != nil {
		observability.RecordAction(string(step.Action), err)
		return err
	}
	return e.Execute(ctx, cmd)
}

// ExecuteDecision compiles and runs a planner decision.
func (e *Executor) ExecuteDecision(ctx context.Context, d schemas.Decision) error {
	cmd, err := FromDecision(d)
	if err != nil {
		observability.RecordAction(string(d.Action), err)
		return err
	}
	return e.Execute(ctx, cmd)
}

func (e *Executor) VisitTap(ctx context.Context, c Tap) error {
	p, err := e.resolve(ctx, c.Kind(), c.Target)
	if err != nil {
		return err
	}
	e.logger.Debug("Tap", zap.Int("x", p.X), zap.Int("y", p.Y))
	if err := e.device.Tap(ctx, p.X, p.Y); err != nil {
		return fmt.Errorf("tap at (%d, %d) failed: %w", p.X, p.Y, err)
	}
	return nil
}

func (e *Executor) VisitInput(ctx context.Context, c Input) error {
	p, err := e.resolve(ctx, c.Kind(), c.Target)
	if err != nil {
		return err
	}
	if c.Text == nil {
		return newError(ErrCodeMissingInputText, c.Kind(), "inputText is required")
	}
	e.logger.Debug("Input", zap.Int("x", p.X), zap.Int("y", p.Y), zap.Int("length", len(*c.Text)))
	if err := e.device.InputText(ctx, p.X, p.Y, *c.Text); err != nil {
		return fmt.Errorf("text input at (%d, %d) failed: %w", p.X, p.Y, err)
	}
	return nil
}

func (e *Executor) VisitScroll(ctx context.Context, c Scroll) error {
	e.logger.Debug("Scroll", zap.String("direction", string(c.Direction)))
	if err := e.device.Scroll(ctx, c.Direction); err != nil {
		return fmt.Errorf("scroll %s failed: %w", c.Direction, err)
	}
	return nil
}

func (e *Executor) VisitBack(ctx context.Context, _ Back) error {
	e.logger.Debug("Back")
	if err := e.device.Back(ctx); err != nil {
		return fmt.Errorf("back failed: %w", err)
	}
	return nil
}

func (e *Executor) resolve(ctx context.Context, kind schemas.ActionKind, target *schemas.ActionTarget) (Point, error) {
	p, err := e.resolver.Resolve(ctx, target)
	if err != nil {
		var coded *Error
		if errors.As(err, &coded) {
			coded.Action = kind
		}
		return Point{}, err
	}
	return p, nil
}
