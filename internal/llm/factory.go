package llm

import (
	"fmt"

	"github.com/qualagents/qualagents/internal/config"
)

// NewTextGenerator creates the TextGenerator named by provider using the
// application LLM config. An empty provider selects cfg.LLMProvider.
func NewTextGenerator(cfg config.LLMConfig, provider string) (TextGenerator, error) {
	if provider == "" {
		provider = cfg.LLMProvider
	}
	switch provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.Temperature,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", provider)
	}
}

// NewEmbeddingGenerator creates the EmbeddingGenerator for the configured
// primary provider.
func NewEmbeddingGenerator(cfg config.LLMConfig) (EmbeddingGenerator, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.EmbeddingModel,
			BaseURL: cfg.OpenAIBaseURL,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL:        cfg.OllamaURL,
			EmbeddingModel: cfg.EmbeddingModel,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.LLMProvider)
	}
}

// NewGeneratorChain builds the ordered provider chain used across the
// system: the optional secondary provider first, then the primary (the
// extractor's "secondary tried first, primary as fallback" contract).
// When a rate limit is configured the whole chain is wrapped with it.
func NewGeneratorChain(cfg config.LLMConfig) (TextGenerator, error) {
	primary, err := NewTextGenerator(cfg, "")
	if err != nil {
		return nil, err
	}

	var gen TextGenerator = primary
	if cfg.SecondaryProvider != "" && cfg.SecondaryProvider != cfg.LLMProvider {
		secondary, err := NewTextGenerator(cfg, cfg.SecondaryProvider)
		if err != nil {
			return nil, fmt.Errorf("secondary provider: %w", err)
		}
		gen, err = NewFallbackGenerator(secondary, primary)
		if err != nil {
			return nil, err
		}
	}

	if cfg.RequestsPerSecond > 0 {
		gen = NewRateLimitedGenerator(gen, cfg.RequestsPerSecond, 2)
	}
	return gen, nil
}
