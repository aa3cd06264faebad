package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	authdomain "fupm-backend/internal/auth/domain"
	authrepo "fupm-backend/internal/auth/repository"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"
	"fupm-backend/pkg/config"
	"fupm-backend/pkg/metrics"

	"go.uber.org/zap"
)

// PaymentResult counts one payment detection pass.
type PaymentResult struct {
	Checked       int
	AutoCompleted int
	Errors        int
}

// PaymentDetector closes active requests whose thread shows the payment arrived.
// Closing is silent: no follow-up and no notification.
type PaymentDetector struct {
	mail     MailGateway
	ai       AIService
	users    authrepo.UserRepository
	requests repository.RequestRepository
	logger   *zap.Logger
	timeout  time.Duration

	mode     config.PaymentCheckMode
	interval time.Duration

	mu          sync.Mutex
	lastChecked map[string]time.Time
	now         func() time.Time
}

func NewPaymentDetector(
	mail MailGateway,
	ai AIService,
	users authrepo.UserRepository,
	requests repository.RequestRepository,
	mode config.PaymentCheckMode,
	interval time.Duration,
	timeout time.Duration,
	logger *zap.Logger,
) *PaymentDetector {
	return &PaymentDetector{
		mail:        mail,
		ai:          ai,
		users:       users,
		requests:    requests,
		logger:      logger,
		timeout:     timeout,
		mode:        mode,
		interval:    interval,
		lastChecked: make(map[string]time.Time),
		now:         time.Now,
	}
}

// CheckUser checks the user's active requests that are linked to a thread.
func (d *PaymentDetector) CheckUser(ctx context.Context, user *authdomain.User) (*PaymentResult, error) {
	requests, err := d.requests.ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load active requests: %w", err)
	}

	result := &PaymentResult{}
	for _, req := range requests {
		d.check(ctx, user, req, result)
	}
	return result, nil
}

// CheckAll checks every active request system-wide. Requests whose owner has
// no mail credential are left alone.
func (d *PaymentDetector) CheckAll(ctx context.Context) (*PaymentResult, error) {
	requests, err := d.requests.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active requests: %w", err)
	}

	d.prune(requests)

	result := &PaymentResult{}
	owners := make(map[string]*authdomain.User)
	for _, req := range requests {
		user, ok := owners[req.UserID]
		if !ok {
			user, err = d.users.FindByID(ctx, req.UserID)
			if err != nil {
				d.logger.Error("Failed to load request owner",
					zap.String("request_id", req.ID),
					zap.String("user_id", req.UserID),
					zap.Error(err),
				)
				result.Errors++
				continue
			}
			owners[req.UserID] = user
		}
		if user == nil || !user.HasMailCredential() {
			continue
		}
		d.check(ctx, user, req, result)
	}
	return result, nil
}

func (d *PaymentDetector) check(ctx context.Context, user *authdomain.User, req *requestdomain.Request, result *PaymentResult) {
	if !req.IsActive() || !req.HasThread() {
		return
	}
	if !d.due(req.ID) {
		return
	}
	result.Checked++

	paid, err := d.classify(ctx, user, req)
	if err != nil {
		d.logger.Warn("Payment check failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		result.Errors++
		return
	}
	d.markChecked(req.ID)
	if !paid {
		return
	}

	closed, err := d.requests.CloseIfActive(ctx, req.ID)
	if err != nil {
		d.logger.Error("Failed to close paid request",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		result.Errors++
		return
	}
	d.forget(req.ID)
	if !closed {
		return
	}
	req.Status = requestdomain.StatusClosed
	result.AutoCompleted++
	metrics.IncrementRequestsAutoClosed()
	d.logger.Info("Request auto-closed after payment",
		zap.String("request_id", req.ID),
		zap.String("user_id", req.UserID),
	)
}

func (d *PaymentDetector) classify(ctx context.Context, user *authdomain.User, req *requestdomain.Request) (bool, error) {
	detailCtx, cancel := withCallTimeout(ctx, d.timeout)
	messages, err := d.mail.GetThreadDetail(detailCtx, user, *req.ThreadID)
	cancel()
	if err != nil {
		return false, fmt.Errorf("fetch thread: %w", err)
	}

	classifyCtx, cancel := withCallTimeout(ctx, d.timeout)
	defer cancel()
	paid, err := d.ai.ClassifyPaid(classifyCtx, threadBodies(messages))
	if err != nil {
		return false, fmt.Errorf("classify payment: %w", err)
	}
	return paid, nil
}

// due applies the configured gate. In interval mode a request is re-checked
// only once the interval has passed since its last successful check.
func (d *PaymentDetector) due(requestID string) bool {
	if d.mode != config.PaymentCheckInterval {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastChecked[requestID]
	if !ok {
		return true
	}
	return d.now().Sub(last) >= d.interval
}

func (d *PaymentDetector) markChecked(requestID string) {
	if d.mode != config.PaymentCheckInterval {
		return
	}
	d.mu.Lock()
	d.lastChecked[requestID] = d.now()
	d.mu.Unlock()
}

func (d *PaymentDetector) forget(requestID string) {
	d.mu.Lock()
	delete(d.lastChecked, requestID)
	d.mu.Unlock()
}

// prune drops check times of requests that are no longer active, including
// ones closed by hand or deleted.
func (d *PaymentDetector) prune(active []*requestdomain.Request) {
	keep := make(map[string]struct{}, len(active))
	for _, req := range active {
		keep[req.ID] = struct{}{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.lastChecked {
		if _, ok := keep[id]; !ok {
			delete(d.lastChecked, id)
		}
	}
}
