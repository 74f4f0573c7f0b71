package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/llmutil"
)

const systemPrompt = `You are a mobile UI analyzer. You receive a screenshot of a mobile web browser.
List every element a user could interact with or read: buttons, links, text fields, images, headings.
Respond with JSON only, in this shape:
{"elements":[{"id":"string","label":"visible text or description","role":"button|text|input|image|unknown","bounds":{"x":0,"y":0,"w":0,"h":0},"confidence":0.0}]}
Bounds are in screenshot pixels with the origin at the top-left corner.`

type analysis struct {
	Elements []schemas.UIElement `json:"elements"`
}

// LLM detects elements by sending the screenshot to a multimodal model.
type LLM struct {
	logger   *zap.Logger
	client   schemas.LLMClient
	readFile func(string) ([]byte, error)
}

var _ schemas.Vision = (*LLM)(nil)

func NewLLM(logger *zap.Logger, client schemas.LLMClient) *LLM {
	return &LLM{logger: logger.Named("vision.llm"), client: client, readFile: os.ReadFile}
}

func (v *LLM) Analyze(ctx context.Context, screenshot string) ([]schemas.UIElement, error) {
	data, err := v.readFile(screenshot)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}

	resp, err := v.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   "Analyze this screen.",
		Images:       []schemas.Image{{MIMEType: mimeType(screenshot), Data: data}},
		Tier:         schemas.TierFast,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}

	parsed, err := llmutil.ParseJSONResponse[analysis](resp)
	if err != nil {
		return nil, err
	}
	elements := normalizeElements(parsed.Elements)
	v.logger.Debug("Screen analyzed", zap.Int("elements", len(elements)))
	return elements, nil
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
