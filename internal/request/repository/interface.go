package repository

import (
	"context"

	requestdomain "fupm-backend/internal/request/domain"
)

// RequestRepository defines persistence operations for tracked requests
type RequestRepository interface {
	// CreateBatch inserts all requests in one statement. Threads already tracked
	// for the user are skipped; the count of inserted rows is returned.
	CreateBatch(ctx context.Context, requests []*requestdomain.Request) (int64, error)
	FindByID(ctx context.Context, id string) (*requestdomain.Request, error)
	// FindByIDForUser loads a request with its followups, scoped to its owner.
	FindByIDForUser(ctx context.Context, userID, id string) (*requestdomain.Request, error)
	// ListByUser lists the user's requests, newest first. An empty status lists all.
	ListByUser(ctx context.Context, userID string, status requestdomain.RequestStatus) ([]*requestdomain.Request, error)
	ListThreadIDsByUser(ctx context.Context, userID string) ([]string, error)
	// ListActive returns every active request across users, oldest first.
	ListActive(ctx context.Context) ([]*requestdomain.Request, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*requestdomain.Request, error)
	Update(ctx context.Context, request *requestdomain.Request) error
	// CloseIfActive moves an active request to closed. It reports false when the
	// request was no longer active.
	CloseIfActive(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, userID, id string) error
}

// FollowupRepository defines persistence operations for follow-up records
type FollowupRepository interface {
	CountByRequest(ctx context.Context, requestID string) (int, error)
	FindLatestByRequest(ctx context.Context, requestID string) (*requestdomain.Followup, error)
	ListByRequest(ctx context.Context, requestID string) ([]*requestdomain.Followup, error)
	Create(ctx context.Context, followup *requestdomain.Followup) error
}

// VoiceRepository defines persistence operations for the voice catalog
type VoiceRepository interface {
	List(ctx context.Context) ([]*requestdomain.Voice, error)
	FindByName(ctx context.Context, name string) (*requestdomain.Voice, error)
	// Upsert inserts the voice or refreshes the row with the same name.
	Upsert(ctx context.Context, voice *requestdomain.Voice) error
}
