package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

const storyPrompt = `You are a test planner for a mobile web app.
Given a user story and the visible UI elements, choose the single action that exercises the story.
Actions: tap|input|scroll|back|finish.
For tap and input use normalized x_ratio and y_ratio between 0 and 1. Absolute coordinates are forbidden.
For scroll give target.direction up or down.
Respond with JSON only:
{"action":"tap","target":{"id":null,"label":null,"role":null,"x_ratio":0.5,"y_ratio":0.5,"direction":null},"inputText":null,"notes":null}`

// StoryLLM plans the action of a story check. Its targets are always
// screen-relative so one plan works across device sizes.
type StoryLLM struct {
	logger *zap.Logger
	client schemas.LLMClient
}

var _ schemas.StoryPlanner = (*StoryLLM)(nil)

func NewStoryLLM(logger *zap.Logger, client schemas.LLMClient) *StoryLLM {
	return &StoryLLM{logger: logger.Named("planner.story"), client: client}
}

func (p *StoryLLM) Decide(ctx context.Context, sctx schemas.StoryPlanContext) (schemas.Decision, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Story: %s\n", sctx.Story)
	fmt.Fprintf(&user, "StepIndex: %d\n", sctx.StepIndex)
	fmt.Fprintf(&user, "Elements: %s\n", mustJSON(sctx.Elements))

	resp, err := p.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: storyPrompt,
		UserPrompt:   user.String(),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return schemas.Decision{}, fmt.Errorf("story planner request failed: %w", err)
	}
	d, err := parseDecision(resp)
	if err != nil {
		return schemas.Decision{}, err
	}
	if d.Target != nil {
		d.Target.X, d.Target.Y, d.Target.Bounds = nil, nil, nil
	}
	p.logger.Debug("Story action decided", zap.String("action", string(d.Action)))
	return d, nil
}
