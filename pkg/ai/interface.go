package ai

import (
	"context"
)

// TextGenerator is the interface every language model provider implements.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// Token caps per prompt kind
const (
	followupMaxTokens = 500
	classifyMaxTokens = 10
	extractMaxTokens  = 300
)
