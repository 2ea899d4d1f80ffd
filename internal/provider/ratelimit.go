package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/relayforge/reliant/internal/logger"
)

// tokenEstimator gives a rough token count for a piece of text: about 4
// characters per token, with a 20% safety buffer. This is a static
// heuristic, not an accounting of actual provider usage — the engine's
// Non-goals exclude learning rate limits from provider responses.
type tokenEstimator struct{}

func (tokenEstimator) estimate(text string) int {
	base := len(text) / 4
	return int(float64(base) * 1.2)
}

func (e tokenEstimator) estimateMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += 4 // per-message structural overhead
		total += e.estimate(m.Content)
	}
	return total
}

// RateLimitedProvider wraps a Provider with a client-side token bucket so
// calls are paced against a configured budget. The CLI wraps each provider
// of the engine's chain with it, so the wait happens inside a provider
// attempt. It is a pure pacing concern: it holds no engine locks and makes
// no retry decisions.
type RateLimitedProvider struct {
	inner     Provider
	limiter   *rate.Limiter
	estimator tokenEstimator
}

// NewRateLimitedProvider wraps inner with a token bucket sized for
// tokensPerMinute, with burst capacity of ten seconds' worth of tokens
// (minimum 1000).
func NewRateLimitedProvider(inner Provider, tokensPerMinute int) *RateLimitedProvider {
	tokensPerSecond := float64(tokensPerMinute) / 60.0
	burst := tokensPerMinute / 6
	if burst < 1000 {
		burst = 1000
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burst),
	}
}

func (p *RateLimitedProvider) ChatWithSystem(ctx context.Context, systemPrompt *string, message, model string, temperature float64) (string, error) {
	tokens := p.estimator.estimate(message)
	if systemPrompt != nil {
		tokens += p.estimator.estimate(*systemPrompt)
	}
	if err := p.wait(ctx, tokens); err != nil {
		return "", err
	}
	return p.inner.ChatWithSystem(ctx, systemPrompt, message, model, temperature)
}

func (p *RateLimitedProvider) ChatWithHistory(ctx context.Context, messages []Message, model string, temperature float64) (string, error) {
	tokens := p.estimator.estimateMessages(messages)
	if err := p.wait(ctx, tokens); err != nil {
		return "", err
	}
	return p.inner.ChatWithHistory(ctx, messages, model, temperature)
}

func (p *RateLimitedProvider) Warmup(ctx context.Context) error {
	if w, ok := p.inner.(Warmer); ok {
		return w.Warmup(ctx)
	}
	return nil
}

func (p *RateLimitedProvider) wait(ctx context.Context, tokens int) error {
	reservation := p.limiter.ReserveN(time.Now(), tokens)
	if !reservation.OK() {
		logger.Debug("ratelimit: requested tokens exceed burst size, waiting for availability")
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}
