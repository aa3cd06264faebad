package repository

import (
	"context"
	"errors"
	"time"

	requestdomain "fupm-backend/internal/request/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// followupRepository implements FollowupRepository interface
type followupRepository struct {
	db *gorm.DB
}

// NewFollowupRepository creates a new instance of followupRepository
func NewFollowupRepository(db *gorm.DB) FollowupRepository {
	return &followupRepository{
		db: db,
	}
}

func (r *followupRepository) CountByRequest(ctx context.Context, requestID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&requestdomain.Followup{}).
		Where("request_id = ?", requestID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *followupRepository) FindLatestByRequest(ctx context.Context, requestID string) (*requestdomain.Followup, error) {
	var followup requestdomain.Followup
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("sent_at DESC").
		First(&followup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &followup, nil
}

func (r *followupRepository) ListByRequest(ctx context.Context, requestID string) ([]*requestdomain.Followup, error) {
	var followups []*requestdomain.Followup
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("followup_number ASC").
		Find(&followups).Error
	if err != nil {
		return nil, err
	}
	return followups, nil
}

func (r *followupRepository) Create(ctx context.Context, followup *requestdomain.Followup) error {
	defer observe("create", "followups", time.Now())

	if followup.ID == "" {
		followup.ID = uuid.New().String()
	}
	if followup.SentAt.IsZero() {
		followup.SentAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(followup).Error
}
