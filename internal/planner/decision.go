// Package planner holds the strategies that choose the next device action
// and judge story outcomes.
package planner

import (
	"fmt"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/llmutil"
)

func knownAction(kind schemas.ActionKind) bool {
	switch kind {
	case schemas.ActionTap, schemas.ActionInput, schemas.ActionScroll, schemas.ActionBack, schemas.ActionFinish:
		return true
	}
	return false
}

// parseDecision decodes a model response and rejects tags outside the
// action vocabulary. Target shape is left for the executor to judge.
func parseDecision(resp string) (schemas.Decision, error) {
	d, err := llmutil.ParseJSONResponse[schemas.Decision](resp)
	if err != nil {
		return schemas.Decision{}, err
	}
	if !knownAction(d.Action) {
		return schemas.Decision{}, fmt.Errorf("planner returned unsupported action %q", d.Action)
	}
	if d.Action == schemas.ActionFinish || d.Action == schemas.ActionBack {
		d.Target = nil
		d.InputText = nil
	}
	if d.Target != nil && d.Target.Role != "" {
		d.Target.Role = schemas.NormalizeRole(string(d.Target.Role))
	}
	return *d, nil
}

func mustJSON(v any) string {
	b, err := json.MarshalToString(v)
	if err != nil {
		return "null"
	}
	return b
}
