package schemas

import (
	"context"
	"time"
)

// -- Device Capability --

// Device drives a single mobile browser screen. Implementations are not safe
// for overlapping calls; the orchestration loops never issue them.
type Device interface {
	// OpenURL navigates the browser to url.
	OpenURL(ctx context.Context, url string) error
	// CaptureScreenshot stores the current screen and returns a reference to it.
	CaptureScreenshot(ctx context.Context) (string, error)
	Tap(ctx context.Context, x, y int) error
	// InputText focuses the point at (x, y) and types text into it.
	InputText(ctx context.Context, x, y int, text string) error
	Scroll(ctx context.Context, direction ScrollDirection) error
	Back(ctx context.Context) error
	ScreenSize(ctx context.Context) (ScreenSize, error)
}

// DeviceCloser is implemented by devices that hold a browser process or
// connection that has to be released.
type DeviceCloser interface {
	Device
	Close() error
}

// -- Decision Capabilities --

// Vision turns a screenshot reference into the elements visible on it. An
// empty result is not an error.
type Vision interface {
	Analyze(ctx context.Context, screenshot string) ([]UIElement, error)
}

// Planner chooses the next exploration step.
type Planner interface {
	Decide(ctx context.Context, pctx PlannerContext) (Decision, error)
}

// StoryPlanner chooses the single action of a story check.
type StoryPlanner interface {
	Decide(ctx context.Context, sctx StoryPlanContext) (Decision, error)
}

// Evaluator judges a story assertion from the screens before and after its action.
type Evaluator interface {
	Evaluate(ctx context.Context, ectx EvaluationContext) (StoryEvaluation, error)
}

// -- LLM Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Screen analysis and evaluation.
	TierPowerful ModelTier = "powerful" // Planning.
)

// GenerationOptions controls the text generation of a single request.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
}

// Image is an inline image attached to a user prompt.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, the desired model tier, and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Images       []Image           `json:"images,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// -- Run History --

// RunKind names the loop that produced a run record.
type RunKind string

const (
	RunExplore RunKind = "explore"
	RunReplay  RunKind = "replay"
	RunStories RunKind = "stories"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one entry of the run history. Steps counts executed route
// steps, or processed stories for a story batch.
type RunRecord struct {
	ID         string    `json:"id"`
	Kind       RunKind   `json:"kind"`
	URL        string    `json:"url,omitempty"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Steps      int       `json:"steps"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
