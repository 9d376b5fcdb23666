package ava

import (
	"context"
	"fmt"
	"log/slog"
)

// Provider generation settings shared by all backends.
const (
	Temperature     = 0.8
	TopP            = 0.95
	TopK            = 40
	MaxOutputTokens = 300
)

// Provider sends one message, with the conversation so far, to a hosted model.
type Provider interface {
	Name() string
	Reply(ctx context.Context, systemPrompt string, history []Turn, message string) (string, error)
}

// ProviderConfig selects and configures a Provider.
type ProviderConfig struct {
	Name   string
	APIKey string
	Model  string
}

// NewProvider builds the configured provider. Without an API key it returns
// nil, and the agent answers with its fallback text.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		logger.Warn("AI provider API key not set, Ava will use fallback responses",
			slog.String("provider", cfg.Name))
		return nil, nil
	}

	switch cfg.Name {
	case "", ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case ProviderAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Name)
	}
}
