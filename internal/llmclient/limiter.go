package llmclient

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// RateLimited paces requests to an LLMClient to a fixed number per minute.
type RateLimited struct {
	next    schemas.LLMClient
	limiter *rate.Limiter
}

var _ schemas.LLMClient = (*RateLimited)(nil)

// NewRateLimited allows perMinute requests per minute with a burst of one.
func NewRateLimited(next schemas.LLMClient, perMinute int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimited) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Generate(ctx, req)
}

func (r *RateLimited) Close() error {
	return r.next.Close()
}
