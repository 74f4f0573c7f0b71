package planner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

func TestParseManualCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    schemas.Decision
		wantErr bool
	}{
		{"finish", schemas.Decision{Action: schemas.ActionFinish}, false},
		{"BACK # go home", schemas.Decision{Action: schemas.ActionBack, Notes: "go home"}, false},
		{"scroll", schemas.Decision{Action: schemas.ActionScroll, Target: &schemas.ActionTarget{Direction: schemas.ScrollDown}}, false},
		{"scroll up", schemas.Decision{Action: schemas.ActionScroll, Target: &schemas.ActionTarget{Direction: schemas.ScrollUp}}, false},
		{"tap 10 20", schemas.Decision{Action: schemas.ActionTap, Target: schemas.Point(10, 20)}, false},
		{"input 5 6 hello world", schemas.Decision{Action: schemas.ActionInput, Target: schemas.Point(5, 6), InputText: ptr("hello world")}, false},
		{"tap 10", schemas.Decision{}, true},
		{"tap a b", schemas.Decision{}, true},
		{"jump", schemas.Decision{}, true},
		{"# only notes", schemas.Decision{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseManualCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManualDecide_RepromptsUntilValid(t *testing.T) {
	var out bytes.Buffer
	m := NewManual(strings.NewReader("\nwiggle\ntap 1 2\n"), &out)

	d, err := m.Decide(context.Background(), schemas.PlannerContext{
		Intent:   "explore",
		Elements: []schemas.UIElement{{ID: "b1", Label: "OK", Role: schemas.RoleButton}},
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.ActionTap, d.Action)
	assert.Contains(t, out.String(), `[b1] button "OK"`)
	assert.Contains(t, out.String(), `unknown action "wiggle"`)
}

func TestManualDecide_LastLineWithoutNewline(t *testing.T) {
	m := NewManual(strings.NewReader("finish"), &bytes.Buffer{})
	d, err := m.Decide(context.Background(), schemas.PlannerContext{})
	require.NoError(t, err)
	assert.True(t, d.IsFinish())
}

func TestManualDecide_InputClosed(t *testing.T) {
	m := NewManual(strings.NewReader(""), &bytes.Buffer{})
	_, err := m.Decide(context.Background(), schemas.PlannerContext{})
	assert.ErrorIs(t, err, ErrInputClosed)
}
