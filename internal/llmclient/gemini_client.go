package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
)

// GeminiClient implements schemas.LLMClient with the Google Gen AI SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	maxRetries  int
	logger      *zap.Logger

	backoffFactory func() backoff.BackOff
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the SDK client for one model. A configured
// endpoint replaces the SDK's base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		logger:      logger.Named("llm_client.gemini").With(zap.String("model", model)),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate sends the prompts and images to the model, retrying transient failures.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	contents, genConfig := c.buildRequest(req)

	var content string
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genConfig)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return c.classifyError(err)
		}

		text := resp.Text()
		if text == "" {
			if len(resp.Candidates) > 0 {
				reason := resp.Candidates[0].FinishReason
				if reason == genai.FinishReasonSafety || reason == genai.FinishReasonBlocklist {
					return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", reason))
				}
			}
			return fmt.Errorf("gemini API returned empty content")
		}

		fields := []zap.Field{zap.Duration("duration", time.Since(start))}
		if u := resp.UsageMetadata; u != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", u.PromptTokenCount),
				zap.Int32("completion_tokens", u.CandidatesTokenCount),
				zap.Int32("total_tokens", u.TotalTokenCount))
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)
		content = text
		return nil
	}

	var b backoff.BackOff = c.backoffFactory()
	if c.maxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func (c *GeminiClient) buildRequest(req schemas.GenerationRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := []*genai.Part{genai.NewPartFromText(req.UserPrompt)}
	for _, img := range req.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, mime))
	}

	temperature := float32(c.temperature)
	if req.Options.Temperature > 0 {
		temperature = float32(req.Options.Temperature)
	}
	genConfig := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMIMEType = "application/json"
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, genConfig
}

// classifyError keeps rate limiting and server errors retryable.
func (c *GeminiClient) classifyError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
		return err
	}
	c.logger.Error("Gemini API returned error status", zap.Int("status", code), zap.Error(err))
	if isTransientStatus(code) {
		return err
	}
	return backoff.Permanent(err)
}

// Close is a no-op; the SDK client holds no dedicated resources.
func (c *GeminiClient) Close() error {
	return nil
}
