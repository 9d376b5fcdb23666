package ava

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ProviderAnthropic     = "anthropic"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Anthropic talks to the Messages API, sending the whole history each time.
type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Reply(ctx context.Context, systemPrompt string, history []Turn, message string) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   MaxOutputTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    messages,
		Temperature: anthropic.Float(Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("anthropic returned an empty reply")
	}
	return reply.String(), nil
}
