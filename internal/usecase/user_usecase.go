package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/pricewatch/internal/domain"
)

var ErrUserNotRegistered = errors.New("user not registered")

type UserUsecase struct {
	users domain.UserRepository
}

func NewUserUsecase(users domain.UserRepository) *UserUsecase {
	return &UserUsecase{users: users}
}

// Register returns the user for telegramUserID, creating it on first contact.
func (u *UserUsecase) Register(ctx context.Context, telegramUserID int64, username string) (*domain.User, error) {
	user, err := u.users.GetByTelegramID(ctx, telegramUserID)
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	user = &domain.User{TelegramUserID: telegramUserID, Username: username}
	if err := u.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func requireUser(ctx context.Context, users domain.UserRepository, telegramUserID int64) (*domain.User, error) {
	user, err := users.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return user, nil
}
