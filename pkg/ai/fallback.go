package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// FallbackService routes generation to Gemini first (better quality) and
// falls back to a local Ollama when Gemini is unavailable or out of quota.
type FallbackService struct {
	gemini TextGenerator
	ollama TextGenerator
	logger *zap.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(gemini, ollama TextGenerator, logger *zap.Logger) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
		logger: logger,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAny(err.Error(),
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	)
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(),
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
	)
}

func containsAny(s string, indicators ...string) bool {
	s = strings.ToLower(s)
	for _, indicator := range indicators {
		if strings.Contains(s, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// Generate tries Gemini first and falls back to Ollama on any error
func (f *FallbackService) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if f.gemini != nil {
		result, err := f.gemini.Generate(ctx, prompt, maxTokens)
		if err == nil {
			return result, nil
		}
		if f.ollama == nil {
			return "", fmt.Errorf("gemini generation failed: %w", err)
		}
		if isQuotaError(err) {
			f.logger.Warn("Gemini quota exhausted, falling back to Ollama", zap.Error(err))
		} else {
			f.logger.Warn("Gemini error, falling back to Ollama", zap.Error(err))
		}
	}

	if f.ollama != nil {
		result, err := f.ollama.Generate(ctx, prompt, maxTokens)
		if err == nil {
			return result, nil
		}
		if isConnectionError(err) {
			f.logger.Warn("Ollama connection failed", zap.Error(err))
		}
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}

	return "", fmt.Errorf("no AI provider available for generation")
}
