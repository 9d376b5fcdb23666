package ava

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	ProviderGemini     = "gemini"
	DefaultGeminiModel = "gemini-2.5-flash-lite"
)

// Gemini talks to the Gemini API through a fresh chat seeded with history.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Reply(ctx context.Context, systemPrompt string, history []Turn, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	chat, err := g.client.Chats.Create(ctx, g.model, &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](Temperature),
		TopP:              genai.Ptr[float32](TopP),
		TopK:              genai.Ptr[float32](TopK),
		MaxOutputTokens:   MaxOutputTokens,
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}, contents)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty reply")
	}
	return text, nil
}
