package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// LLMRouter implements the LLMClient interface and routes requests.
type LLMRouter struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
	debug   bool
}

var _ schemas.LLMClient = (*LLMRouter)(nil)

// RouterOption customizes an LLMRouter.
type RouterOption func(*LLMRouter)

// WithDebug logs full prompts and responses at debug level.
func WithDebug(enabled bool) RouterOption {
	return func(r *LLMRouter) { r.debug = enabled }
}

// NewLLMRouter creates a new router with the specified clients for each tier.
func NewLLMRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient, opts ...RouterOption) (*LLMRouter, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	r := &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Generate selects the appropriate client based on the request's Tier.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful // Default to the powerful tier if unspecified.
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	if r.debug {
		r.logger.Debug("LLM prompt",
			zap.String("system", req.SystemPrompt),
			zap.String("user", req.UserPrompt),
			zap.Int("images", len(req.Images)))
	}

	resp, err := client.Generate(ctx, req)
	if err == nil && r.debug {
		r.logger.Debug("LLM response", zap.String("body", resp))
	}
	return resp, err
}

// Close releases both tier clients. A client registered for both tiers is closed once.
func (r *LLMRouter) Close() error {
	var firstErr error
	fast, powerful := r.clients[schemas.TierFast], r.clients[schemas.TierPowerful]
	if err := fast.Close(); err != nil {
		firstErr = err
	}
	if powerful != fast {
		if err := powerful.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
