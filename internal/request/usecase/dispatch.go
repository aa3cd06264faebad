package usecase

import (
	"context"
	"fmt"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"
	"fupm-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DispatchStrategy delivers a generated follow-up one way and names the mode it records.
type DispatchStrategy interface {
	Mode() requestdomain.FollowupMode
	Deliver(ctx context.Context, mail MailGateway, user *authdomain.User, msg requestdomain.OutgoingMessage) (string, error)
}

type draftStrategy struct{}

func (draftStrategy) Mode() requestdomain.FollowupMode { return requestdomain.ModeDraft }

func (draftStrategy) Deliver(ctx context.Context, mail MailGateway, user *authdomain.User, msg requestdomain.OutgoingMessage) (string, error) {
	return mail.CreateDraft(ctx, user, msg)
}

type sendStrategy struct{}

func (sendStrategy) Mode() requestdomain.FollowupMode { return requestdomain.ModeSent }

func (sendStrategy) Deliver(ctx context.Context, mail MailGateway, user *authdomain.User, msg requestdomain.OutgoingMessage) (string, error) {
	return mail.SendMessage(ctx, user, msg)
}

// StrategyFor selects delivery from the user's preference. Anything but send drafts.
func StrategyFor(action authdomain.FollowupAction) DispatchStrategy {
	if action == authdomain.FollowupActionSend {
		return sendStrategy{}
	}
	return draftStrategy{}
}

// Dispatcher delivers a follow-up and records exactly one Followup for it.
type Dispatcher struct {
	mail      MailGateway
	followups repository.FollowupRepository
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewDispatcher(mail MailGateway, followups repository.FollowupRepository, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mail:      mail,
		followups: followups,
		logger:    logger,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, user *authdomain.User, requestID string, number int, msg requestdomain.OutgoingMessage) (*requestdomain.Followup, error) {
	strategy := StrategyFor(user.Action())

	callCtx, cancel := withCallTimeout(ctx, d.timeout)
	externalID, err := strategy.Deliver(callCtx, d.mail, user, msg)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%s follow-up: %w", strategy.Mode(), err)
	}

	followup := &requestdomain.Followup{
		ID:             uuid.New().String(),
		RequestID:      requestID,
		EmailID:        optionalString(externalID),
		FollowupNumber: number,
		Mode:           strategy.Mode(),
		SentAt:         d.now(),
	}
	if err := d.followups.Create(ctx, followup); err != nil {
		// The mail side already happened; the log keeps the external id findable
		d.logger.Error("Failed to record follow-up",
			zap.String("request_id", requestID),
			zap.Int("followup_number", number),
			zap.String("email_id", externalID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record follow-up: %w", err)
	}

	metrics.IncrementFollowupDispatched(string(followup.Mode))
	return followup, nil
}
