package usecase

import (
	"context"

	authdomain "fupm-backend/internal/auth/domain"
	requestdomain "fupm-backend/internal/request/domain"
)

// MailGateway is the mailbox the core reads threads from and replies into.
type MailGateway interface {
	EnsureLabel(ctx context.Context, user *authdomain.User) (string, error)
	ListThreadsWithLabel(ctx context.Context, user *authdomain.User, labelID string) ([]string, error)
	GetThreadDetail(ctx context.Context, user *authdomain.User, threadID string) ([]requestdomain.ThreadMessage, error)
	CreateDraft(ctx context.Context, user *authdomain.User, msg requestdomain.OutgoingMessage) (string, error)
	SendMessage(ctx context.Context, user *authdomain.User, msg requestdomain.OutgoingMessage) (string, error)
}

// AIService is the language model collaborator.
type AIService interface {
	// ExtractContext returns an empty context, not an error, when the model answer is unusable
	ExtractContext(ctx context.Context, bodies []string) (*requestdomain.ThreadContext, error)
	ClassifyPaid(ctx context.Context, bodies []string) (bool, error)
	GenerateFollowup(ctx context.Context, params requestdomain.FollowupParams) (string, error)
}

// RequestUsecase defines the dashboard operations on a user's requests
type RequestUsecase interface {
	// ListRequests filters by status when set; a non-empty query keeps fuzzy matches ranked best first
	ListRequests(ctx context.Context, userID string, status requestdomain.RequestStatus, query string) ([]*requestdomain.Request, error)
	GetRequest(ctx context.Context, userID, requestID string) (*requestdomain.Request, error)
	UpdateRequest(ctx context.Context, userID, requestID string, update requestdomain.RequestUpdate) (*requestdomain.Request, error)
	DeleteRequest(ctx context.Context, userID, requestID string) error

	GetSettings(ctx context.Context, userID string) (*Settings, error)
	UpdateSettings(ctx context.Context, userID string, action string) (*Settings, error)

	ListVoices(ctx context.Context) ([]*requestdomain.Voice, error)
}

// SyncUsecase drives ingestion and payment detection for one user or for everyone
type SyncUsecase interface {
	// SyncUser ingests new labeled threads and auto-closes paid requests for one user.
	SyncUser(ctx context.Context, userID string) (*SyncResult, error)
	// RunCron runs ingestion, payment detection and scheduled follow-ups for all users.
	RunCron(ctx context.Context) (*CronResult, error)
}

// FollowupUsecase generates and dispatches follow-ups
type FollowupUsecase interface {
	// RunAll processes every active request that is due.
	RunAll(ctx context.Context) (*RunSummary, error)
	// SendNow follows up on one request immediately, ignoring the interval.
	SendNow(ctx context.Context, userID, requestID string) (requestdomain.FollowupMode, error)
}

type Settings struct {
	Email          string                    `json:"email"`
	FollowupAction authdomain.FollowupAction `json:"followupAction"`
}

type RunSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Total     int `json:"total"`
}

type SyncResult struct {
	Synced        int `json:"synced"`
	AutoCompleted int `json:"autoCompleted"`
	Total         int `json:"total"`
}

type CronResult struct {
	RunSummary
	Synced        int `json:"synced"`
	AutoCompleted int `json:"autoCompleted"`
	UserErrors    int `json:"userErrors"`
}
