package action

import (
	"context"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// Command is an executable device action. The set of implementations is closed:
// Tap, Input, Scroll and Back. Every consumer dispatches through CommandVisitor,
// so a new variant does not build until each visitor handles it.
type Command interface {
	Kind() schemas.ActionKind
	Accept(ctx context.Context, v CommandVisitor) error
	sealed()
}

// CommandVisitor handles every Command variant.
type CommandVisitor interface {
	VisitTap(ctx context.Context, c Tap) error
	VisitInput(ctx context.Context, c Input) error
	VisitScroll(ctx context.Context, c Scroll) error
	VisitBack(ctx context.Context, c Back) error
}

// Tap presses the resolved target point.
type Tap struct {
	Target *schemas.ActionTarget
}

// Input types Text into the resolved target point. Text is checked at execution
// time, after the target resolves.
type Input struct {
	Target *schemas.ActionTarget
	Text   *string
}

// Scroll moves the page one screen in Direction.
type Scroll struct {
	Direction schemas.ScrollDirection
}

// Back presses the system back button.
type Back struct{}

func (Tap) Kind() schemas.ActionKind    { return schemas.ActionTap }
func (Input) Kind() schemas.ActionKind  { return schemas.ActionInput }
func (Scroll) Kind() schemas.ActionKind { return schemas.ActionScroll }
func (Back) Kind() schemas.ActionKind   { return schemas.ActionBack }

func (c Tap) Accept(ctx context.Context, v CommandVisitor) error    { return v.VisitTap(ctx, c) }
func (c Input) Accept(ctx context.Context, v CommandVisitor) error  { return v.VisitInput(ctx, c) }
func (c Scroll) Accept(ctx context.Context, v CommandVisitor) error { return v.VisitScroll(ctx, c) }
func (c Back) Accept(ctx context.Context, v CommandVisitor) error   { return v.VisitBack(ctx, c) }

func (Tap) sealed()    {}
func (Input) sealed()  {}
func (Scroll) sealed() {}
func (Back) sealed()   {}

// Compile builds the Command for a wire-level action tag. The finish sentinel
// and unknown tags fail with ErrUnsupportedAction; so does a scroll direction
// other than up or down. A missing scroll direction means down.
func Compile(kind schemas.ActionKind, target *schemas.ActionTarget, inputText *string) (Command, error) {
	switch kind {
	case schemas.ActionTap:
		return Tap{Target: target}, nil
	case schemas.ActionInput:
		return Input{Target: target, Text: inputText}, nil
	case schemas.ActionScroll:
		dir := schemas.ScrollDown
		if target != nil && target.Direction != "" {
			dir = target.Direction
		}
		if dir != schemas.ScrollUp && dir != schemas.ScrollDown {
			return nil, newError(ErrCodeUnsupportedAction, kind, "unsupported scroll direction %q", dir)
		}
		return Scroll{Direction: dir}, nil
	case schemas.ActionBack:
		return Back{}, nil
	default:
		return nil, newError(ErrCodeUnsupportedAction, kind, "action is not executable")
	}
}

// FromStep compiles a recorded route step.
func FromStep(step schemas.RouteStep) (Command, error) {
	return Compile(step.Action, step.Target, step.InputText)
}

// FromDecision compiles a planner decision. Callers check IsFinish first.
func FromDecision(d schemas.Decision) (Command, error) {
	return Compile(d.Action, d.Target, d.InputText)
}
