package db

import (
	"context"
	"errors"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	return r.first(ctx, "telegram_user_id = ?", telegramUserID)
}

func (r *UserRepository) GetByID(ctx context.Context, userID uint) (*domain.User, error) {
	return r.first(ctx, "id = ?", userID)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	model := userModel{TelegramUserID: user.TelegramUserID, Username: user.Username}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	return nil
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var model userModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.User{
		ID:             model.ID,
		TelegramUserID: model.TelegramUserID,
		Username:       model.Username,
		CreatedAt:      model.CreatedAt,
	}, nil
}
