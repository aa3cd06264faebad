package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"
	"fupm-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestResult counts what one ingestion pass found.
type IngestResult struct {
	Synced int
	Total  int
}

// IngestionService turns labeled mail threads into tracked requests.
type IngestionService struct {
	mail     MailGateway
	ai       AIService
	requests repository.RequestRepository
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewIngestionService(mail MailGateway, ai AIService, requests repository.RequestRepository, timeout time.Duration, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		mail:     mail,
		ai:       ai,
		requests: requests,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// IngestUser creates a request for every labeled thread not tracked yet.
// A failing thread is logged and skipped; the rest are inserted in one batch.
func (s *IngestionService) IngestUser(ctx context.Context, user *authdomain.User) (*IngestResult, error) {
	labelCtx, cancel := withCallTimeout(ctx, s.timeout)
	labelID, err := s.mail.EnsureLabel(labelCtx, user)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("ensure label: %w", err)
	}

	listCtx, cancel := withCallTimeout(ctx, s.timeout)
	threadIDs, err := s.mail.ListThreadsWithLabel(listCtx, user, labelID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list labeled threads: %w", err)
	}

	existing, err := s.requests.ListThreadIDsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load tracked threads: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	result := &IngestResult{Total: len(threadIDs)}
	var created []*requestdomain.Request
	for _, threadID := range threadIDs {
		if threadID == "" {
			continue
		}
		if _, ok := seen[threadID]; ok {
			continue
		}
		// a thread listed twice in one page is still one request
		seen[threadID] = struct{}{}

		req, err := s.buildRequest(ctx, user, threadID)
		if err != nil {
			s.logger.Warn("Failed to ingest thread",
				zap.String("user_id", user.ID),
				zap.String("thread_id", threadID),
				zap.Error(err),
			)
			continue
		}
		if req == nil {
			continue
		}
		created = append(created, req)
	}

	if len(created) > 0 {
		inserted, err := s.requests.CreateBatch(ctx, created)
		if err != nil {
			return nil, fmt.Errorf("insert requests: %w", err)
		}
		result.Synced = int(inserted)
	}
	metrics.AddRequestsIngested(result.Synced)

	s.logger.Info("Ingested labeled threads",
		zap.String("user_id", user.ID),
		zap.Int("synced", result.Synced),
		zap.Int("total", result.Total),
	)
	return result, nil
}

// buildRequest returns nil without error for threads that carry no messages.
func (s *IngestionService) buildRequest(ctx context.Context, user *authdomain.User, threadID string) (*requestdomain.Request, error) {
	detailCtx, cancel := withCallTimeout(ctx, s.timeout)
	messages, err := s.mail.GetThreadDetail(detailCtx, user, threadID)
	cancel()
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	extractCtx, cancel := withCallTimeout(ctx, s.timeout)
	extracted, err := s.ai.ExtractContext(extractCtx, threadBodies(messages))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("extract context: %w", err)
	}
	if extracted == nil {
		extracted = &requestdomain.ThreadContext{}
	}

	first := messages[0]
	headerName, address := resolveCounterparty(first, user.Email)

	now := s.now()
	initial := now
	if t, ok := parseMessageDate(first.Date); ok {
		initial = t
	}

	req := &requestdomain.Request{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RecipientEmail:   address,
		RecipientName:    firstNonEmpty(extracted.RecipientName, headerName),
		Subject:          optionalString(first.Subject),
		Amount:           extracted.Amount,
		OriginalEmailID:  optionalString(first.ID),
		ThreadID:         optionalString(threadID),
		Status:           requestdomain.StatusActive,
		FollowupInterval: requestdomain.DefaultFollowupInterval,
		Context:          extracted.Context,
		Tone:             requestdomain.DefaultTone,
		InitialRequestAt: &initial,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return req, nil
}

func threadBodies(messages []requestdomain.ThreadMessage) []string {
	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		bodies = append(bodies, m.Body)
	}
	return bodies
}

func firstNonEmpty(preferred *string, fallback string) *string {
	if preferred != nil && strings.TrimSpace(*preferred) != "" {
		v := strings.TrimSpace(*preferred)
		return &v
	}
	return optionalString(fallback)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// withCallTimeout bounds one collaborator call. A non-positive timeout only adds cancellation.
func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
