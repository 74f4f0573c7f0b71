package vision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/mocks"
)

func writeScreenshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screen-1.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG"), 0o644))
	return path
}

func TestLLMAnalyze(t *testing.T) {
	client := new(mocks.MockLLMClient)
	path := writeScreenshot(t)

	client.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast &&
			req.Options.ForceJSONFormat &&
			len(req.Images) == 1 &&
			req.Images[0].MIMEType == "image/png" &&
			string(req.Images[0].Data) == "\x89PNG"
	})).Return("```json\n"+`{"elements":[
		{"id":"login","label":"Log in","role":"button","bounds":{"x":10,"y":20,"w":100,"h":40},"confidence":1.7},
		{"label":"Banner","role":"carousel","bounds":{"x":0,"y":0,"w":300,"h":100},"confidence":-0.2},
		{"id":"ghost","label":"Zero","role":"text","bounds":{"x":0,"y":0,"w":0,"h":10},"confidence":0.5}
	]}`+"\n```", nil).Once()

	v := NewLLM(zaptest.NewLogger(t), client)
	elements, err := v.Analyze(context.Background(), path)

	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "login", elements[0].ID)
	assert.Equal(t, 1.0, elements[0].Confidence)
	assert.Equal(t, schemas.RoleUnknown, elements[1].Role)
	assert.Equal(t, 0.0, elements[1].Confidence)
	assert.Equal(t, "el-1", elements[1].ID)
	client.AssertExpectations(t)
}

func TestLLMAnalyze_Failures(t *testing.T) {
	t.Run("missing screenshot", func(t *testing.T) {
		v := NewLLM(zaptest.NewLogger(t), new(mocks.MockLLMClient))
		_, err := v.Analyze(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
		assert.ErrorContains(t, err, "failed to read screenshot")
	})

	t.Run("client error", func(t *testing.T) {
		client := new(mocks.MockLLMClient)
		client.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota"))
		v := NewLLM(zaptest.NewLogger(t), client)
		_, err := v.Analyze(context.Background(), writeScreenshot(t))
		assert.ErrorContains(t, err, "vision request failed: quota")
	})

	t.Run("unparseable response", func(t *testing.T) {
		client := new(mocks.MockLLMClient)
		client.On("Generate", mock.Anything, mock.Anything).Return("I see a login page.", nil)
		v := NewLLM(zaptest.NewLogger(t), client)
		_, err := v.Analyze(context.Background(), writeScreenshot(t))
		assert.Error(t, err)
	})
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeType("a/b.JPG"))
	assert.Equal(t, "image/webp", mimeType("x.webp"))
	assert.Equal(t, "image/png", mimeType("x.png"))
}

func TestNoop(t *testing.T) {
	elements, err := Noop{}.Analyze(context.Background(), "any")
	assert.NoError(t, err)
	assert.Empty(t, elements)
}
