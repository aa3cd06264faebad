package repository

import (
	"context"
	"errors"
	"time"

	authdomain "fupm-backend/internal/auth/domain"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	Create(ctx context.Context, user *authdomain.User) error
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
	Update(ctx context.Context, user *authdomain.User) error
	// UpdateTokens persists a refreshed credential. An empty refresh token keeps the stored one.
	UpdateTokens(ctx context.Context, userID string, token *oauth2.Token) error
	UpdateLabelID(ctx context.Context, userID, labelID string) error
	UpdateFollowupAction(ctx context.Context, userID string, action authdomain.FollowupAction) error
	// ListWithMailCredential returns every user with a non-empty access token.
	ListWithMailCredential(ctx context.Context) ([]*authdomain.User, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(ctx context.Context, user *authdomain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.FollowupAction == "" {
		user.FollowupAction = authdomain.FollowupActionDraft
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *authdomain.User) error {
	user.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateTokens(ctx context.Context, userID string, token *oauth2.Token) error {
	now := time.Now()
	updates := map[string]interface{}{
		"access_token":       token.AccessToken,
		"token_refreshed_at": now,
		"updated_at":         now,
	}
	if token.RefreshToken != "" {
		updates["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		updates["token_expiry"] = token.Expiry
	}
	return r.db.WithContext(ctx).Model(&authdomain.User{}).Where("id = ?", userID).Updates(updates).Error
}

func (r *userRepository) UpdateLabelID(ctx context.Context, userID, labelID string) error {
	return r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"gmail_label_id": labelID, "updated_at": time.Now()}).Error
}

func (r *userRepository) UpdateFollowupAction(ctx context.Context, userID string, action authdomain.FollowupAction) error {
	return r.db.WithContext(ctx).Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"followup_action": action, "updated_at": time.Now()}).Error
}

func (r *userRepository) ListWithMailCredential(ctx context.Context) ([]*authdomain.User, error) {
	var users []*authdomain.User
	err := r.db.WithContext(ctx).
		Where("access_token IS NOT NULL AND access_token <> ''").
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
