package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/svaidyan/arthamitra/internal/config"
)

// NewClient creates the OpenAI-compatible client for the configured provider.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientConfig)
}
