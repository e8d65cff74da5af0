package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidDirection = domain.ErrInvalidDirection
	ErrInvalidTarget    = errors.New("invalid target price")
	ErrAlertNotFound    = errors.New("alert not found")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]{0,19}$`)

// targetScale matches the two-decimal precision alerts are stored with.
const targetScale = 2

type AlertUsecase struct {
	users  domain.UserRepository
	alerts domain.AlertRepository
}

func NewAlertUsecase(users domain.UserRepository, alerts domain.AlertRepository) *AlertUsecase {
	return &AlertUsecase{users: users, alerts: alerts}
}

func (u *AlertUsecase) AddAlert(ctx context.Context, telegramUserID int64, symbol, direction, target string) (*domain.Alert, error) {
	user, err := requireUser(ctx, u.users, telegramUserID)
	if err != nil {
		return nil, err
	}

	normalized, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(strings.TrimSpace(target))
	if err != nil {
		return nil, ErrInvalidTarget
	}
	price = price.Round(targetScale)
	if !price.IsPositive() {
		return nil, ErrInvalidTarget
	}

	alert := &domain.Alert{
		UserID:      user.ID,
		Symbol:      normalized,
		TargetPrice: price,
		Direction:   dir,
		Active:      true,
	}
	if err := u.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (u *AlertUsecase) ListAlerts(ctx context.Context, telegramUserID int64) ([]domain.Alert, error) {
	user, err := requireUser(ctx, u.users, telegramUserID)
	if err != nil {
		return nil, err
	}
	return u.alerts.ListByUser(ctx, user.ID)
}

// ToggleAlert flips the active flag. Re-activating a triggered alert is the
// explicit user reset: it becomes eligible to fire again.
func (u *AlertUsecase) ToggleAlert(ctx context.Context, telegramUserID int64, alertID uint) (*domain.Alert, error) {
	user, err := requireUser(ctx, u.users, telegramUserID)
	if err != nil {
		return nil, err
	}

	alert, err := u.alerts.Get(ctx, user.ID, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	active := !alert.Active
	if err := u.alerts.SetActive(ctx, user.ID, alertID, active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	alert.Active = active
	if active {
		alert.TriggeredAt = nil
	}
	return alert, nil
}

func (u *AlertUsecase) DeleteAlert(ctx context.Context, telegramUserID int64, alertID uint) error {
	user, err := requireUser(ctx, u.users, telegramUserID)
	if err != nil {
		return err
	}

	if err := u.alerts.Delete(ctx, user.ID, alertID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	return nil
}

func ValidateSymbol(symbol string) (string, error) {
	normalized := domain.NormalizeSymbol(symbol)
	if !symbolPattern.MatchString(normalized) {
		return "", ErrInvalidSymbol
	}
	return normalized, nil
}
