package usecase

import (
	"context"
	"fmt"
	"time"

	authrepo "fupm-backend/internal/auth/repository"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/pkg/metrics"

	"go.uber.org/zap"
)

// syncUsecase implements SyncUsecase interface
type syncUsecase struct {
	users     authrepo.UserRepository
	ingestion *IngestionService
	payments  *PaymentDetector
	followups FollowupUsecase
	logger    *zap.Logger
}

// NewSyncUsecase creates a new instance of syncUsecase
func NewSyncUsecase(
	users authrepo.UserRepository,
	ingestion *IngestionService,
	payments *PaymentDetector,
	followups FollowupUsecase,
	logger *zap.Logger,
) SyncUsecase {
	return &syncUsecase{
		users:     users,
		ingestion: ingestion,
		payments:  payments,
		followups: followups,
		logger:    logger,
	}
}

func (u *syncUsecase) SyncUser(ctx context.Context, userID string) (*SyncResult, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, requestdomain.ErrNotFound)
	}
	if !user.HasMailCredential() {
		return nil, fmt.Errorf("mailbox not connected: %w", requestdomain.ErrPreconditionFailed)
	}

	ingested, err := u.ingestion.IngestUser(ctx, user)
	if err != nil {
		return nil, err
	}

	paid, err := u.payments.CheckUser(ctx, user)
	if err != nil {
		return nil, err
	}

	return &SyncResult{
		Synced:        ingested.Synced,
		AutoCompleted: paid.AutoCompleted,
		Total:         ingested.Total,
	}, nil
}

// RunCron syncs every connected user, then checks payments and sends what is due.
// A failing user is logged and does not stop the others.
func (u *syncUsecase) RunCron(ctx context.Context) (*CronResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCronRun(time.Since(start))
	}()

	users, err := u.users.ListWithMailCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	result := &CronResult{}
	for _, user := range users {
		ingested, err := u.ingestion.IngestUser(ctx, user)
		if err != nil {
			u.logger.Error("Cron sync failed for user",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			result.UserErrors++
			continue
		}
		result.Synced += ingested.Synced
	}

	paid, err := u.payments.CheckAll(ctx)
	if err != nil {
		return nil, err
	}
	result.AutoCompleted = paid.AutoCompleted

	summary, err := u.followups.RunAll(ctx)
	if err != nil {
		return nil, err
	}
	result.RunSummary = *summary

	u.logger.Info("Cron run finished",
		zap.Int("users", len(users)),
		zap.Int("synced", result.Synced),
		zap.Int("auto_completed", result.AutoCompleted),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
