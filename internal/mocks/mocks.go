// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"io"
	"strings"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/shell"
	"github.com/stretchr/testify/mock"
)

// -- Device Mock --

// MockDevice mocks the schemas.Device interface.
type MockDevice struct {
	mock.Mock
}

var _ schemas.Device = (*MockDevice)(nil)

func (m *MockDevice) OpenURL(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDevice) CaptureScreenshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDevice) Tap(ctx context.Context, x, y int) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockDevice) InputText(ctx context.Context, x, y int, text string) error {
	return m.Called(ctx, x, y, text).Error(0)
}

func (m *MockDevice) Scroll(ctx context.Context, direction schemas.ScrollDirection) error {
	return m.Called(ctx, direction).Error(0)
}

func (m *MockDevice) Back(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDevice) ScreenSize(ctx context.Context) (schemas.ScreenSize, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.ScreenSize), args.Error(1)
}

// -- Decision Capability Mocks --

// MockVision mocks the schemas.Vision interface.
type MockVision struct {
	mock.Mock
}

func (m *MockVision) Analyze(ctx context.Context, screenshot string) ([]schemas.UIElement, error) {
	args := m.Called(ctx, screenshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.UIElement), args.Error(1)
}

// MockPlanner mocks the schemas.Planner interface.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Decide(ctx context.Context, pctx schemas.PlannerContext) (schemas.Decision, error) {
	args := m.Called(ctx, pctx)
	return args.Get(0).(schemas.Decision), args.Error(1)
}

// MockStoryPlanner mocks the schemas.StoryPlanner interface.
type MockStoryPlanner struct {
	mock.Mock
}

func (m *MockStoryPlanner) Decide(ctx context.Context, sctx schemas.StoryPlanContext) (schemas.Decision, error) {
	args := m.Called(ctx, sctx)
	return args.Get(0).(schemas.Decision), args.Error(1)
}

// MockEvaluator mocks the schemas.Evaluator interface.
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, ectx schemas.EvaluationContext) (schemas.StoryEvaluation, error) {
	args := m.Called(ctx, ectx)
	return args.Get(0).(schemas.StoryEvaluation), args.Error(1)
}

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Session Mock --

// MockBootstrapper mocks the lenient pre-run session push.
type MockBootstrapper struct {
	mock.Mock
}

func (m *MockBootstrapper) PushIfPresent(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// -- Shell Runner Mock --

// MockRunner mocks the shell.Runner interface. When a command streams to a
// writer, the configured Result.Stdout is copied into it. Stdin is drained and
// kept in Stdin so tests can inspect what was uploaded.
type MockRunner struct {
	mock.Mock
	Stdin []byte
}

var _ shell.Runner = (*MockRunner)(nil)

func (m *MockRunner) Run(ctx context.Context, cmd shell.Command) (shell.Result, error) {
	if cmd.Stdin != nil {
		data, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return shell.Result{}, err
		}
		m.Stdin = data
	}
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(shell.Result)
	if cmd.Stdout != nil && len(res.Stdout) > 0 {
		if _, err := cmd.Stdout.Write(res.Stdout); err != nil {
			return res, err
		}
		res.Stdout = nil
	}
	return res, args.Error(1)
}

// CommandContaining matches a shell.Command whose rendered command line
// contains fragment.
func CommandContaining(fragment string) interface{} {
	return mock.MatchedBy(func(cmd shell.Command) bool {
		return strings.Contains(cmd.String(), fragment)
	})
}
