package planner

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const explorePrompt = `You are exploring a mobile web app to accomplish an intent.
Given the intent, the visible UI elements and the steps already taken, choose the next action.
Actions: tap|input|scroll|back|finish. Choose finish when the intent is accomplished or cannot progress.
For tap and input, give a target with absolute x and y in screen pixels, or the element bounds.
For input also give inputText. For scroll give target.direction up or down.
Respond with JSON only:
{"action":"tap","target":{"id":null,"label":null,"role":null,"x":null,"y":null,"bounds":null,"x_ratio":null,"y_ratio":null,"direction":null},"inputText":null,"notes":"why"}`

// LLM is the exploration planner backed by a language model.
type LLM struct {
	logger *zap.Logger
	client schemas.LLMClient
}

var _ schemas.Planner = (*LLM)(nil)

func NewLLM(logger *zap.Logger, client schemas.LLMClient) *LLM {
	return &LLM{logger: logger.Named("planner.llm"), client: client}
}

func (p *LLM) Decide(ctx context.Context, pctx schemas.PlannerContext) (schemas.Decision, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Intent: %s\n", pctx.Intent)
	fmt.Fprintf(&user, "StepIndex: %d\n", pctx.StepIndex)
	fmt.Fprintf(&user, "History: %s\n", mustJSON(pctx.History))
	fmt.Fprintf(&user, "Elements: %s\n", mustJSON(pctx.Elements))

	resp, err := p.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: explorePrompt,
		UserPrompt:   user.String(),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return schemas.Decision{}, fmt.Errorf("planner request failed: %w", err)
	}
	d, err := parseDecision(resp)
	if err != nil {
		return schemas.Decision{}, err
	}
	p.logger.Debug("Planner decided", zap.Int("step", pctx.StepIndex), zap.String("action", string(d.Action)))
	return d, nil
}
