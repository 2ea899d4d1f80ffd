package main

import (
	"fmt"

	"github.com/relayforge/reliant/internal/config"
	"github.com/relayforge/reliant/internal/engine"
	"github.com/relayforge/reliant/internal/provider"
)

// buildEngine loads configuration and assembles the provider chain it
// describes into a single reliability engine.
func buildEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var named []provider.Named
	for _, kind := range cfg.ProviderChain {
		switch kind {
		case config.ProviderAnthropic:
			p := provider.NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
			named = append(named, wrapRateLimited("anthropic", p, cfg))
		case config.ProviderOllama:
			p := provider.NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model)
			named = append(named, wrapRateLimited("ollama", p, cfg))
		default:
			return nil, nil, fmt.Errorf("unknown provider kind %q", kind)
		}
	}
	if len(named) == 0 {
		return nil, nil, fmt.Errorf("no providers configured")
	}

	return engine.New(named, cfg.Engine), cfg, nil
}

func wrapRateLimited(name string, p provider.Provider, cfg *config.Config) provider.Named {
	if cfg.RateLimit.Enabled {
		p = provider.NewRateLimitedProvider(p, cfg.RateLimit.TokensPerMinute)
	}
	return provider.Named{Name: name, Provider: p}
}
