package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	authrepo "fupm-backend/internal/auth/repository"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"
	"fupm-backend/pkg/lock"
	"fupm-backend/pkg/metrics"

	"go.uber.org/zap"
)

const followupLockPrefix = "followup:"

var errNotDue = errors.New("follow-up not due")

type outcome string

const (
	outcomeProcessed outcome = "processed"
	outcomeSkipped   outcome = "skipped"
	outcomeError     outcome = "error"
)

// FollowupService decides which requests are due and runs generation and
// dispatch for them. Each request is handled under its own lock so overlapping
// triggers cannot claim the same follow-up number.
type FollowupService struct {
	users      authrepo.UserRepository
	requests   repository.RequestRepository
	followups  repository.FollowupRepository
	voices     *VoiceResolver
	ai         AIService
	dispatcher *Dispatcher
	locker     lock.Locker
	lockTTL    time.Duration
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewFollowupService(
	users authrepo.UserRepository,
	requests repository.RequestRepository,
	followups repository.FollowupRepository,
	voices *VoiceResolver,
	ai AIService,
	dispatcher *Dispatcher,
	locker lock.Locker,
	lockTTL time.Duration,
	timeout time.Duration,
	logger *zap.Logger,
) *FollowupService {
	return &FollowupService{
		users:      users,
		requests:   requests,
		followups:  followups,
		voices:     voices,
		ai:         ai,
		dispatcher: dispatcher,
		locker:     locker,
		lockTTL:    lockTTL,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *FollowupService) RunAll(ctx context.Context) (*RunSummary, error) {
	requests, err := s.requests.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active requests: %w", err)
	}

	summary := &RunSummary{Total: len(requests)}
	owners := make(map[string]*authdomain.User)
	for _, req := range requests {
		result := s.processScheduled(ctx, req, owners)
		metrics.IncrementFollowupOutcome(string(result))
		switch result {
		case outcomeProcessed:
			summary.Processed++
		case outcomeSkipped:
			summary.Skipped++
		default:
			summary.Errors++
		}
	}

	s.logger.Info("Follow-up run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Int("total", summary.Total),
	)
	return summary, nil
}

func (s *FollowupService) processScheduled(ctx context.Context, req *requestdomain.Request, owners map[string]*authdomain.User) outcome {
	user, ok := owners[req.UserID]
	if !ok {
		var err error
		user, err = s.users.FindByID(ctx, req.UserID)
		if err != nil {
			s.logger.Error("Failed to load request owner",
				zap.String("request_id", req.ID),
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
			return outcomeError
		}
		owners[req.UserID] = user
	}
	if user == nil || !user.HasMailCredential() || !req.HasThread() {
		return outcomeSkipped
	}

	mode, err := s.followUp(ctx, user, req.ID, true)
	switch {
	case err == nil:
		s.logger.Info("Follow-up dispatched",
			zap.String("request_id", req.ID),
			zap.String("mode", string(mode)),
		)
		return outcomeProcessed
	case errors.Is(err, errNotDue),
		errors.Is(err, requestdomain.ErrFollowupInProgress),
		errors.Is(err, requestdomain.ErrPreconditionFailed),
		errors.Is(err, requestdomain.ErrNotFound):
		return outcomeSkipped
	default:
		s.logger.Error("Follow-up failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return outcomeError
	}
}

func (s *FollowupService) SendNow(ctx context.Context, userID, requestID string) (requestdomain.FollowupMode, error) {
	req, err := s.requests.FindByIDForUser(ctx, userID, requestID)
	if err != nil {
		return "", err
	}
	if req == nil {
		return "", fmt.Errorf("request %s: %w", requestID, requestdomain.ErrNotFound)
	}
	if !req.IsActive() {
		return "", fmt.Errorf("request is %s: %w", req.Status, requestdomain.ErrPreconditionFailed)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("user %s: %w", userID, requestdomain.ErrNotFound)
	}
	if !user.HasMailCredential() {
		return "", fmt.Errorf("mailbox not connected: %w", requestdomain.ErrPreconditionFailed)
	}

	mode, err := s.followUp(ctx, user, req.ID, false)
	if err != nil {
		return "", err
	}
	s.logger.Info("Manual follow-up dispatched",
		zap.String("request_id", req.ID),
		zap.String("mode", string(mode)),
	)
	return mode, nil
}

// followUp claims the request's lock, re-reads it and runs one follow-up.
// Scheduled runs also require the interval to have elapsed.
func (s *FollowupService) followUp(ctx context.Context, user *authdomain.User, requestID string, scheduled bool) (requestdomain.FollowupMode, error) {
	unlock, acquired, err := s.locker.TryLock(ctx, followupLockPrefix+requestID, s.lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquire follow-up lock: %w", err)
	}
	if !acquired {
		return "", requestdomain.ErrFollowupInProgress
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			s.logger.Warn("Failed to release follow-up lock", zap.String("request_id", requestID), zap.Error(err))
		}
	}()

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req == nil {
		return "", fmt.Errorf("request %s: %w", requestID, requestdomain.ErrNotFound)
	}
	if !req.IsActive() {
		return "", fmt.Errorf("request is %s: %w", req.Status, requestdomain.ErrPreconditionFailed)
	}
	if !req.HasThread() {
		return "", fmt.Errorf("request has no thread: %w", requestdomain.ErrPreconditionFailed)
	}

	now := s.now()
	if scheduled {
		latest, err := s.followups.FindLatestByRequest(ctx, req.ID)
		if err != nil {
			return "", fmt.Errorf("load latest follow-up: %w", err)
		}
		if !isDue(req, latest, now) {
			return "", errNotDue
		}
	}

	count, err := s.followups.CountByRequest(ctx, req.ID)
	if err != nil {
		return "", fmt.Errorf("count follow-ups: %w", err)
	}
	number := count + 1

	voice := s.voices.Resolve(ctx, req.Tone)
	params := buildFollowupParams(req, voice, number, daysBetween(req.Anchor(), now))

	genCtx, cancel := withCallTimeout(ctx, s.timeout)
	body, err := s.ai.GenerateFollowup(genCtx, params)
	cancel()
	if err != nil {
		return "", fmt.Errorf("generate follow-up: %w", err)
	}

	msg := requestdomain.OutgoingMessage{
		ThreadID: *req.ThreadID,
		To:       req.RecipientEmail,
		ToName:   derefString(req.RecipientName),
		Subject:  composeSubject(req.Subject),
		Body:     body,
	}
	followup, err := s.dispatcher.Dispatch(ctx, user, req.ID, number, msg)
	if err != nil {
		return "", err
	}
	return followup.Mode, nil
}

// isDue compares whole days since the later of the last follow-up and creation
// against the request's interval.
func isDue(req *requestdomain.Request, latest *requestdomain.Followup, now time.Time) bool {
	last := req.CreatedAt
	if latest != nil && latest.SentAt.After(last) {
		last = latest.SentAt
	}
	return daysBetween(last, now) >= req.Interval()
}

// daysBetween floors the elapsed time to whole days.
func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
