package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/pkg/metrics"

	"go.uber.org/zap"
)

// ErrEmptyGeneration is returned when the model produced no usable body.
var ErrEmptyGeneration = errors.New("language model returned an empty follow-up")

// FollowupService turns thread content into structured answers and follow-up prose.
type FollowupService struct {
	generator TextGenerator
	logger    *zap.Logger
}

func NewFollowupService(generator TextGenerator, logger *zap.Logger) *FollowupService {
	return &FollowupService{generator: generator, logger: logger}
}

// ExtractContext never fails on malformed output; it returns an empty context instead.
func (s *FollowupService) ExtractContext(ctx context.Context, bodies []string) (*requestdomain.ThreadContext, error) {
	text, err := s.call(ctx, "extract_context", BuildExtractContextPrompt(bodies), extractMaxTokens)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseThreadContext(text)
	if err != nil {
		s.logger.Warn("Failed to parse thread context", zap.Error(err), zap.String("raw", truncate(text, 200)))
		return &requestdomain.ThreadContext{}, nil
	}
	return parsed, nil
}

func (s *FollowupService) ClassifyPaid(ctx context.Context, bodies []string) (bool, error) {
	text, err := s.call(ctx, "classify_paid", BuildClassifyPaidPrompt(bodies), classifyMaxTokens)
	if err != nil {
		return false, err
	}
	return ParsePaidAnswer(text), nil
}

func (s *FollowupService) GenerateFollowup(ctx context.Context, params requestdomain.FollowupParams) (string, error) {
	text, err := s.call(ctx, "generate_followup", BuildFollowupPrompt(params), followupMaxTokens)
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return "", ErrEmptyGeneration
	}
	return body, nil
}

func (s *FollowupService) call(ctx context.Context, operation, prompt string, maxTokens int) (string, error) {
	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt, maxTokens)
	metrics.RecordCollaboratorCall("ai", operation, err, time.Since(start))
	return text, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
