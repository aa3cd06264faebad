package repository

import (
	"context"
	"errors"
	"time"

	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/pkg/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// requestRepository implements RequestRepository interface
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new instance of requestRepository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{
		db: db,
	}
}

func (r *requestRepository) CreateBatch(ctx context.Context, requests []*requestdomain.Request) (int64, error) {
	if len(requests) == 0 {
		return 0, nil
	}
	defer observe("create_batch", "requests", time.Now())

	now := time.Now()
	for _, req := range requests {
		if req.ID == "" {
			req.ID = uuid.New().String()
		}
		if req.Status == "" {
			req.Status = requestdomain.StatusActive
		}
		if req.FollowupInterval <= 0 {
			req.FollowupInterval = requestdomain.DefaultFollowupInterval
		}
		if req.Tone == "" {
			req.Tone = requestdomain.DefaultTone
		}
		req.CreatedAt = now
		req.UpdatedAt = now
	}
	// a concurrent sync may have tracked the same thread since it was listed
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "thread_id"}},
			DoNothing: true,
		}).
		Omit("Followups").
		Create(&requests)
	return result.RowsAffected, result.Error
}

func (r *requestRepository) FindByID(ctx context.Context, id string) (*requestdomain.Request, error) {
	var req requestdomain.Request
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDForUser(ctx context.Context, userID, id string) (*requestdomain.Request, error) {
	var req requestdomain.Request
	err := r.db.WithContext(ctx).
		Preload("Followups", func(db *gorm.DB) *gorm.DB {
			return db.Order("followup_number ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) ListByUser(ctx context.Context, userID string, status requestdomain.RequestStatus) ([]*requestdomain.Request, error) {
	var requests []*requestdomain.Request
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListThreadIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&requestdomain.Request{}).
		Where("user_id = ? AND thread_id IS NOT NULL", userID).
		Pluck("thread_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *requestRepository) ListActive(ctx context.Context) ([]*requestdomain.Request, error) {
	defer observe("list_active", "requests", time.Now())

	var requests []*requestdomain.Request
	err := r.db.WithContext(ctx).
		Where("status = ?", requestdomain.StatusActive).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListActiveByUser(ctx context.Context, userID string) ([]*requestdomain.Request, error) {
	var requests []*requestdomain.Request
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, requestdomain.StatusActive).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) Update(ctx context.Context, request *requestdomain.Request) error {
	request.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Omit("Followups").Save(request).Error
}

func (r *requestRepository) CloseIfActive(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&requestdomain.Request{}).
		Where("id = ? AND status = ?", id, requestdomain.StatusActive).
		Updates(map[string]interface{}{"status": requestdomain.StatusClosed, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *requestRepository) Delete(ctx context.Context, userID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Followups go first for stores that were migrated without the cascade
		if err := tx.Where("request_id = ?", id).Delete(&requestdomain.Followup{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&requestdomain.Request{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return requestdomain.ErrNotFound
		}
		return nil
	})
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
}
