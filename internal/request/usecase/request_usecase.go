package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	authdomain "fupm-backend/internal/auth/domain"
	authrepo "fupm-backend/internal/auth/repository"
	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"
	"fupm-backend/pkg/ai"
	"fupm-backend/pkg/fuzzy"
)

// requestUsecase implements RequestUsecase interface
type requestUsecase struct {
	users    authrepo.UserRepository
	requests repository.RequestRepository
	voices   repository.VoiceRepository
	resolver *VoiceResolver
}

// NewRequestUsecase creates a new instance of requestUsecase
func NewRequestUsecase(
	users authrepo.UserRepository,
	requests repository.RequestRepository,
	voices repository.VoiceRepository,
	resolver *VoiceResolver,
) RequestUsecase {
	return &requestUsecase{
		users:    users,
		requests: requests,
		voices:   voices,
		resolver: resolver,
	}
}

func (u *requestUsecase) ListRequests(ctx context.Context, userID string, status requestdomain.RequestStatus, query string) ([]*requestdomain.Request, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, requestdomain.ErrInvalidInput)
	}
	requests, err := u.requests.ListByUser(ctx, userID, status)
	if err != nil || strings.TrimSpace(query) == "" {
		return requests, err
	}

	type scored struct {
		req   *requestdomain.Request
		score float64
	}
	var hits []scored
	for _, req := range requests {
		subject, name := derefString(req.Subject), derefString(req.RecipientName)
		if !fuzzy.Match(query, subject, name, req.RecipientEmail) {
			continue
		}
		hits = append(hits, scored{req, fuzzy.Score(query, subject, name, req.RecipientEmail)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	matched := make([]*requestdomain.Request, 0, len(hits))
	for _, h := range hits {
		matched = append(matched, h.req)
	}
	return matched, nil
}

func (u *requestUsecase) GetRequest(ctx context.Context, userID, requestID string) (*requestdomain.Request, error) {
	req, err := u.requests.FindByIDForUser(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, requestdomain.ErrNotFound)
	}
	return req, nil
}

// UpdateRequest applies a user edit. Setting status back to active is the only
// way a closed or cancelled request re-enters scheduling.
func (u *requestUsecase) UpdateRequest(ctx context.Context, userID, requestID string, update requestdomain.RequestUpdate) (*requestdomain.Request, error) {
	req, err := u.GetRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	if update.RecipientName != nil {
		req.RecipientName = optionalString(*update.RecipientName)
	}
	if update.RecipientEmail != nil {
		email := strings.TrimSpace(*update.RecipientEmail)
		if email == "" {
			return nil, fmt.Errorf("recipient email is required: %w", requestdomain.ErrInvalidInput)
		}
		req.RecipientEmail = email
	}
	if update.Amount != nil {
		if strings.TrimSpace(*update.Amount) == "" {
			req.Amount = nil
		} else {
			amount := ai.NormalizeAmount(*update.Amount)
			if amount == "" {
				return nil, fmt.Errorf("invalid amount %q: %w", *update.Amount, requestdomain.ErrInvalidInput)
			}
			req.Amount = &amount
		}
	}
	if update.Tone != nil {
		tone := strings.ToLower(strings.TrimSpace(*update.Tone))
		known, err := u.resolver.Known(ctx, tone)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("unknown voice %q: %w", *update.Tone, requestdomain.ErrInvalidInput)
		}
		req.Tone = tone
	}
	if update.FollowupInterval != nil {
		interval := *update.FollowupInterval
		if interval < requestdomain.MinFollowupInterval || interval > requestdomain.MaxFollowupInterval {
			return nil, fmt.Errorf("follow-up interval must be between %d and %d days: %w",
				requestdomain.MinFollowupInterval, requestdomain.MaxFollowupInterval, requestdomain.ErrInvalidInput)
		}
		req.FollowupInterval = interval
	}
	if update.Context != nil {
		req.Context = strings.TrimSpace(*update.Context)
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *update.Status, requestdomain.ErrInvalidInput)
		}
		req.Status = *update.Status
	}

	if err := u.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (u *requestUsecase) DeleteRequest(ctx context.Context, userID, requestID string) error {
	return u.requests.Delete(ctx, userID, requestID)
}

func (u *requestUsecase) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, requestdomain.ErrNotFound)
	}
	return &Settings{Email: user.Email, FollowupAction: user.Action()}, nil
}

func (u *requestUsecase) UpdateSettings(ctx context.Context, userID string, action string) (*Settings, error) {
	if !authdomain.ValidFollowupAction(action) {
		return nil, fmt.Errorf("invalid followup action %q: %w", action, requestdomain.ErrInvalidInput)
	}
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, requestdomain.ErrNotFound)
	}
	if err := u.users.UpdateFollowupAction(ctx, userID, authdomain.FollowupAction(action)); err != nil {
		return nil, err
	}
	user.FollowupAction = authdomain.FollowupAction(action)
	return &Settings{Email: user.Email, FollowupAction: user.Action()}, nil
}

func (u *requestUsecase) ListVoices(ctx context.Context) ([]*requestdomain.Voice, error) {
	return u.voices.List(ctx)
}
