package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
)

// NewClient is a factory function that creates a tier-routed, rate-limited
// LLMClient based on the configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no LLM API key configured (set OTHELLO_LLM_API_KEY)")
	}

	var fast, powerful schemas.LLMClient
	var err error
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if fast, err = NewOpenAIClient(cfg, cfg.FastModel, logger); err != nil {
			return nil, err
		}
		if powerful, err = NewOpenAIClient(cfg, cfg.PowerfulModel, logger); err != nil {
			return nil, err
		}
	case config.ProviderGemini:
		if fast, err = NewGeminiClient(ctx, cfg, cfg.FastModel, logger); err != nil {
			return nil, err
		}
		if powerful, err = NewGeminiClient(ctx, cfg, cfg.PowerfulModel, logger); err != nil {
			fast.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderOpenAI, config.ProviderGemini)
	}

	router, err := NewLLMRouter(logger, fast, powerful, WithDebug(cfg.Debug))
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute > 0 {
		return NewRateLimited(router, cfg.RequestsPerMinute), nil
	}
	return router, nil
}
