package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited wraps a Provider with a token-bucket limiter shared by all
// concurrent callers.
type rateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited returns p throttled to rps requests per second with the
// given burst. A non-positive rps disables limiting and returns p unchanged.
func NewRateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limiter: %w", err)
	}
	return r.next.Complete(ctx, systemPrompt, userPrompt, maxTokens, temperature)
}
