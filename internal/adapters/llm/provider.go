package llm

import (
	"fmt"

	"github.com/soldano/reagent/internal/config"
	"github.com/soldano/reagent/internal/core/domain"
)

// Build constructs the LLM provider named by the configuration.
func Build(cfg config.Config) (domain.LLMProvider, error) {
	switch cfg.LLMProvider {
	case "", "ollama":
		return NewOllamaProvider(cfg.LLMBaseURL, cfg.LLMModel), nil
	case "openai":
		return NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLMProvider)
	}
}
