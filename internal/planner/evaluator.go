package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/llmutil"
)

const evaluatorPrompt = `You are a test result evaluator for a mobile web app.
Given a user story and the UI elements before and after its action, judge whether the story's expectation is satisfied.
Respond with JSON only:
{"assertion":"what was checked","result":true,"confidence":0.0,"notes":null}`

// Evaluator judges story outcomes with a language model.
type Evaluator struct {
	logger *zap.Logger
	client schemas.LLMClient
}

var _ schemas.Evaluator = (*Evaluator)(nil)

func NewEvaluator(logger *zap.Logger, client schemas.LLMClient) *Evaluator {
	return &Evaluator{logger: logger.Named("evaluator"), client: client}
}

func (e *Evaluator) Evaluate(ctx context.Context, ectx schemas.EvaluationContext) (schemas.StoryEvaluation, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Story: %s\n", ectx.Story)
	fmt.Fprintf(&user, "Before: %s\n", mustJSON(ectx.BeforeElements))
	fmt.Fprintf(&user, "After: %s\n", mustJSON(ectx.AfterElements))

	resp, err := e.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: evaluatorPrompt,
		UserPrompt:   user.String(),
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return schemas.StoryEvaluation{}, fmt.Errorf("evaluator request failed: %w", err)
	}
	ev, err := llmutil.ParseJSONResponse[schemas.StoryEvaluation](resp)
	if err != nil {
		return schemas.StoryEvaluation{}, err
	}
	switch {
	case ev.Confidence < 0:
		ev.Confidence = 0
	case ev.Confidence > 1:
		ev.Confidence = 1
	}
	e.logger.Debug("Story evaluated", zap.Bool("result", ev.Result), zap.Float64("confidence", ev.Confidence))
	return *ev, nil
}
