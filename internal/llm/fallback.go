package llm

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"
)

// FallbackGenerator tries an ordered list of TextGenerator implementations
// in sequence, returning the first successful completion. It models the
// multi-provider fallback chain used by parameter extraction and sentiment
// analysis: any provider error (network, circuit open, malformed response)
// moves on to the next provider.
type FallbackGenerator struct {
	providers []TextGenerator
}

// NewFallbackGenerator creates a fallback chain. Nil providers are skipped.
// At least one non-nil provider is required.
func NewFallbackGenerator(providers ...TextGenerator) (*FallbackGenerator, error) {
	chain := make([]TextGenerator, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("fallback generator requires at least one provider")
	}
	return &FallbackGenerator{providers: chain}, nil
}

// Complete tries each provider in order and returns the first success.
// Intermediate failures are logged; the last error is returned when every
// provider fails.
func (g *FallbackGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for i, p := range g.providers {
		out, err := p.Complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if i < len(g.providers)-1 {
			log.Printf("llm: provider %s failed, falling back: %v", p.GetModel(), err)
		}
		// Context cancellation is not recoverable by another provider.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("all %d providers failed: %w", len(g.providers), lastErr)
}

// GetModel returns the primary provider's model name.
func (g *FallbackGenerator) GetModel() string {
	return g.providers[0].GetModel()
}

// Compile-time assertion.
var _ TextGenerator = (*FallbackGenerator)(nil)

// RateLimitedGenerator wraps a TextGenerator with a token-bucket rate
// limiter. Complete blocks until a token is available or the context is
// cancelled.
type RateLimitedGenerator struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator wraps inner with a sustained requests-per-second
// limit and the given burst size.
func NewRateLimitedGenerator(inner TextGenerator, reqPerSec float64, burst int) *RateLimitedGenerator {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(reqPerSec), burst),
	}
}

// Complete waits for rate-limit admission, then delegates to the inner
// generator.
func (g *RateLimitedGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return g.inner.Complete(ctx, systemPrompt, userPrompt)
}

// GetModel returns the inner generator's model name.
func (g *RateLimitedGenerator) GetModel() string {
	return g.inner.GetModel()
}

// Compile-time assertion.
var _ TextGenerator = (*RateLimitedGenerator)(nil)
