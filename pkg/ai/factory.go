package ai

import (
	"fmt"

	"fupm-backend/pkg/gemini"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	// Gemini config
	GeminiAPIKey string
	GeminiModel  string

	// Ollama config; getters allow the base URL and model to change at runtime
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewTextGenerator creates a TextGenerator based on the config.
// Auto uses Gemini with an Ollama fallback when a Gemini key is present, otherwise Ollama alone.
func NewTextGenerator(cfg Config, logger *zap.Logger) (TextGenerator, error) {
	ollama := NewOllamaService("", "")
	if cfg.GetOllamaBaseURL != nil && cfg.GetOllamaModel != nil {
		ollama = NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
	}

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil

	case ProviderOllama:
		return ollama, nil

	default:
		if cfg.GeminiAPIKey != "" {
			return NewFallbackService(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), ollama, logger), nil
		}
		return ollama, nil
	}
}
