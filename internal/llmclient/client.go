// internal/llmclient/client.go

// Package llmclient talks to the model backing the agent. Clients are thin:
// they take a prompt pair and return the generated text, with retry and rate
// limiting handled internally.
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shihanfu/rl-web-env/internal/config"
)

// Request carries one generation request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// ForceJSON asks the provider to constrain output to a JSON document.
	ForceJSON bool
}

// Client is implemented by every provider backend.
type Client interface {
	GenerateResponse(ctx context.Context, req Request) (string, error)
}

// New creates the client for the configured provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
