package analysis

import (
	"context"
	"fmt"
	"net/http"

	"sales-trainer/internal/config"
)

// NewProvider builds the provider selected by LLM_PROVIDER.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel,
			WithHTTPClient(&http.Client{Timeout: cfg.Timeout})), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
