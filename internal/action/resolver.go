package action

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// ScreenSizer reports the current device viewport. Every schemas.Device is one.
type ScreenSizer interface {
	ScreenSize(ctx context.Context) (schemas.ScreenSize, error)
}

// Point is a resolved absolute device coordinate.
type Point struct {
	X int
	Y int
}

// Resolver turns an ActionTarget into absolute coordinates. The screen size is
// queried at most once per Resolver; one Resolver lives for one run.
type Resolver struct {
	sizer ScreenSizer

	mu     sync.Mutex
	cached *schemas.ScreenSize
}

// NewResolver creates a resolver that scales ratio targets by sizer's screen size.
func NewResolver(sizer ScreenSizer) *Resolver {
	return &Resolver{sizer: sizer}
}

// Resolve applies, first match wins: absolute X/Y, the rounded center of
// Bounds, then XRatio/YRatio scaled by the screen size. A nil target or one
// with none of these forms yields ErrUnresolvableTarget.
func (r *Resolver) Resolve(ctx context.Context, target *schemas.ActionTarget) (Point, error) {
	if target == nil {
		return Point{}, newError(ErrCodeUnresolvableTarget, "", "no target given")
	}

	if target.X != nil && target.Y != nil {
		return Point{X: roundHalfUp(*target.X), Y: roundHalfUp(*target.Y)}, nil
	}

	if b := target.Bounds; b != nil {
		return Point{X: roundHalfUp(b.X + b.W/2), Y: roundHalfUp(b.Y + b.H/2)}, nil
	}

	if target.XRatio != nil && target.YRatio != nil {
		size, err := r.screenSize(ctx)
		if err != nil {
			return Point{}, fmt.Errorf("failed to query screen size: %w", err)
		}
		return Point{
			X: roundHalfUp(float64(size.Width) * *target.XRatio),
			Y: roundHalfUp(float64(size.Height) * *target.YRatio),
		}, nil
	}

	return Point{}, newError(ErrCodeUnresolvableTarget, "", "target %q has neither coordinates, bounds nor ratios", describe(target))
}

func (r *Resolver) screenSize(ctx context.Context) (schemas.ScreenSize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return *r.cached, nil
	}
	size, err := r.sizer.ScreenSize(ctx)
	if err != nil {
		return schemas.ScreenSize{}, err
	}
	r.cached = &size
	return size, nil
}

// roundHalfUp rounds .5 toward positive infinity, the convention planners and
// recorded routes were produced with.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func describe(t *schemas.ActionTarget) string {
	switch {
	case t.ID != "":
		return t.ID
	case t.Label != "":
		return t.Label
	default:
		return "<anonymous>"
	}
}
