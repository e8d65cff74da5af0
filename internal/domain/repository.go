package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetByTelegramID(ctx context.Context, telegramUserID int64) (*User, error)
	GetByID(ctx context.Context, userID uint) (*User, error)
	Create(ctx context.Context, user *User) error
}

type AlertRepository interface {
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, userID uint, alertID uint) (*Alert, error)
	ListByUser(ctx context.Context, userID uint) ([]Alert, error)
	SetActive(ctx context.Context, userID uint, alertID uint, active bool) error
	Delete(ctx context.Context, userID uint, alertID uint) error

	ListActive(ctx context.Context) ([]Alert, error)
	ListActiveBySymbol(ctx context.Context, symbol string) ([]Alert, error)
	MarkTriggered(ctx context.Context, alertID uint, at time.Time) (bool, error)
}
