package repository

import (
	"context"
	"errors"
	"time"

	requestdomain "fupm-backend/internal/request/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// voiceRepository implements VoiceRepository interface
type voiceRepository struct {
	db *gorm.DB
}

// NewVoiceRepository creates a new instance of voiceRepository
func NewVoiceRepository(db *gorm.DB) VoiceRepository {
	return &voiceRepository{
		db: db,
	}
}

func (r *voiceRepository) List(ctx context.Context) ([]*requestdomain.Voice, error) {
	var voices []*requestdomain.Voice
	if err := r.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&voices).Error; err != nil {
		return nil, err
	}
	return voices, nil
}

func (r *voiceRepository) FindByName(ctx context.Context, name string) (*requestdomain.Voice, error) {
	var voice requestdomain.Voice
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&voice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voice, nil
}

func (r *voiceRepository) Upsert(ctx context.Context, voice *requestdomain.Voice) error {
	if voice.ID == "" {
		voice.ID = uuid.New().String()
	}
	if voice.CreatedAt.IsZero() {
		voice.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "description", "examples", "color", "sort_order", "no_escalation"}),
	}).Create(voice).Error
}
