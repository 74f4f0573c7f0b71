package schemas

import (
	"fmt"
	"sort"
	"time"
)

// -- Action Vocabulary --

// ActionKind is the wire tag of a device action as it appears in routes,
// planner decisions and story results.
type ActionKind string

const (
	ActionTap    ActionKind = "tap"
	ActionInput  ActionKind = "input"
	ActionScroll ActionKind = "scroll"
	ActionBack   ActionKind = "back"
	// ActionFinish is a planner-only sentinel. It is never executed or recorded.
	ActionFinish ActionKind = "finish"
)

// ScrollDirection is the only non-positional part of an ActionTarget.
type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

// UIRole classifies a detected element.
type UIRole string

const (
	RoleButton  UIRole = "button"
	RoleText    UIRole = "text"
	RoleInput   UIRole = "input"
	RoleImage   UIRole = "image"
	RoleUnknown UIRole = "unknown"
)

// NormalizeRole maps arbitrary role strings onto the known set, falling back to RoleUnknown.
func NormalizeRole(role string) UIRole {
	switch r := UIRole(role); r {
	case RoleButton, RoleText, RoleInput, RoleImage:
		return r
	default:
		return RoleUnknown
	}
}

// -- Geometry --

// Bounds is a rectangle in device pixels.
type Bounds struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// ScreenSize is the device viewport in pixels.
type ScreenSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UIElement is an on-screen affordance reported by a Vision capability.
type UIElement struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Role       UIRole  `json:"role"`
	Bounds     Bounds  `json:"bounds"`
	Confidence float64 `json:"confidence"`
}

// ActionTarget describes where an action applies. Exactly one positional form is
// expected: absolute X/Y, Bounds, or XRatio/YRatio. When several are present the
// resolver applies them in that order. ID, Label and Role are traceability metadata.
type ActionTarget struct {
	ID        string          `json:"id,omitempty" yaml:"id,omitempty"`
	Label     string          `json:"label,omitempty" yaml:"label,omitempty"`
	Role      UIRole          `json:"role,omitempty" yaml:"role,omitempty"`
	X         *float64        `json:"x,omitempty" yaml:"x,omitempty"`
	Y         *float64        `json:"y,omitempty" yaml:"y,omitempty"`
	Bounds    *Bounds         `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	XRatio    *float64        `json:"x_ratio,omitempty" yaml:"x_ratio,omitempty"`
	YRatio    *float64        `json:"y_ratio,omitempty" yaml:"y_ratio,omitempty"`
	Direction ScrollDirection `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Point returns a target holding an absolute pixel pair.
func Point(x, y float64) *ActionTarget {
	return &ActionTarget{X: &x, Y: &y}
}

// Ratio returns a target holding a screen-relative pair in [0,1].
func Ratio(xr, yr float64) *ActionTarget {
	return &ActionTarget{XRatio: &xr, YRatio: &yr}
}

// -- Routes --

// RouteStep is one recorded action. Index is the step's position within its
// route and is independent of the order steps are stored in.
type RouteStep struct {
	Index          int           `json:"index"`
	Action         ActionKind    `json:"action"`
	Target         *ActionTarget `json:"target,omitempty"`
	InputText      *string       `json:"inputText,omitempty"`
	ScreenshotPath string        `json:"screenshotPath,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// Route is the output of one exploration run.
type Route struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	Steps     []RouteStep `json:"steps"`
}

// Validate checks that step indices are unique and non-negative and that no
// step carries the finish sentinel.
func (r *Route) Validate() error {
	seen := make(map[int]struct{}, len(r.Steps))
	for _, step := range r.Steps {
		if step.Index < 0 {
			return fmt.Errorf("route %s: step index %d is negative", r.ID, step.Index)
		}
		if _, dup := seen[step.Index]; dup {
			return fmt.Errorf("route %s: duplicate step index %d", r.ID, step.Index)
		}
		if step.Action == ActionFinish {
			return fmt.Errorf("route %s: step %d records the finish sentinel", r.ID, step.Index)
		}
		seen[step.Index] = struct{}{}
	}
	return nil
}

// OrderedSteps returns a copy of the steps sorted by ascending Index. The route
// itself is left untouched.
func (r *Route) OrderedSteps() []RouteStep {
	steps := make([]RouteStep, len(r.Steps))
	copy(steps, r.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Index < steps[j].Index })
	return steps
}

// -- Decisions --

// Decision is what a Planner or StoryPlanner returns for one step.
type Decision struct {
	Action    ActionKind    `json:"action"`
	Target    *ActionTarget `json:"target,omitempty"`
	InputText *string       `json:"inputText,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

// IsFinish reports whether the decision is the stop sentinel.
func (d Decision) IsFinish() bool {
	return d.Action == ActionFinish
}

// StepAt converts an executed decision into a route step.
func (d Decision) StepAt(index int, screenshotPath string) RouteStep {
	return RouteStep{
		Index:          index,
		Action:         d.Action,
		Target:         d.Target,
		InputText:      d.InputText,
		ScreenshotPath: screenshotPath,
		Notes:          d.Notes,
	}
}

// PlannerContext is the input to Planner.Decide.
type PlannerContext struct {
	Intent             string      `json:"intent"`
	StepIndex          int         `json:"stepIndex"`
	Elements           []UIElement `json:"elements"`
	History            []RouteStep `json:"history"`
	LastScreenshotPath string      `json:"lastScreenshotPath"`
}

// -- Stories --

// UserStory is one entry of a story batch input file.
type UserStory struct {
	ID    string `json:"id" yaml:"id"`
	Story string `json:"story" yaml:"story"`
}

// StoryPlanContext is the input to StoryPlanner.Decide.
type StoryPlanContext struct {
	Story     string      `json:"story"`
	Elements  []UIElement `json:"elements"`
	StepIndex int         `json:"stepIndex"`
}

// EvaluationContext is the input to Evaluator.Evaluate.
type EvaluationContext struct {
	Story          string      `json:"story"`
	BeforeElements []UIElement `json:"beforeElements"`
	AfterElements  []UIElement `json:"afterElements"`
}

// StoryEvaluation is an evaluator verdict.
type StoryEvaluation struct {
	Assertion  string  `json:"assertion"`
	Result     bool    `json:"result"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// StoryResult records everything one story's pipeline produced before it
// finished or failed.
type StoryResult struct {
	ID         string           `json:"id"`
	Story      string           `json:"story"`
	Action     *Decision        `json:"action,omitempty"`
	Evaluation *StoryEvaluation `json:"evaluation,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Failed reports whether the story's pipeline stopped on an error.
func (r StoryResult) Failed() bool {
	return r.Error != ""
}
