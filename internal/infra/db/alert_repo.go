package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	model := mapAlertToModel(*alert)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	alert.ID = model.ID
	alert.CreatedAt = model.CreatedAt
	return nil
}

func (r *AlertRepository) Get(ctx context.Context, userID uint, alertID uint) (*domain.Alert, error) {
	var model alertModel
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", alertID, userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	alert := mapAlertToDomain(model)
	return &alert, nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Alert, error) {
	var models []alertModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) ListActive(ctx context.Context) ([]domain.Alert, error) {
	var models []alertModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) ListActiveBySymbol(ctx context.Context, symbol string) ([]domain.Alert, error) {
	var models []alertModel
	if err := r.db.WithContext(ctx).Where("active = ? AND symbol = ?", true, symbol).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

// MarkTriggered applies the single active -> triggered transition as one
// conditional update, so a concurrent toggle or delete simply wins.
func (r *AlertRepository) MarkTriggered(ctx context.Context, alertID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND active = ?", alertID, true).
		Updates(map[string]any{"active": false, "triggered_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *AlertRepository) SetActive(ctx context.Context, userID uint, alertID uint, active bool) error {
	changes := map[string]any{"active": active}
	if active {
		changes["triggered_at"] = nil
	}
	result := r.db.WithContext(ctx).Model(&alertModel{}).Where("id = ? AND user_id = ?", alertID, userID).Updates(changes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, userID uint, alertID uint) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", alertID, userID).Delete(&alertModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapAlertsToDomain(models []alertModel) []domain.Alert {
	alerts := make([]domain.Alert, 0, len(models))
	for _, model := range models {
		alerts = append(alerts, mapAlertToDomain(model))
	}
	return alerts
}

func mapAlertToDomain(model alertModel) domain.Alert {
	var triggered *time.Time
	if model.TriggeredAt != nil {
		t := model.TriggeredAt.UTC()
		triggered = &t
	}
	return domain.Alert{
		ID:          model.ID,
		UserID:      model.UserID,
		Symbol:      model.Symbol,
		TargetPrice: model.TargetPrice,
		Direction:   domain.Direction(model.Direction),
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
		TriggeredAt: triggered,
	}
}

func mapAlertToModel(alert domain.Alert) alertModel {
	return alertModel{
		ID:          alert.ID,
		UserID:      alert.UserID,
		Symbol:      alert.Symbol,
		TargetPrice: alert.TargetPrice,
		Direction:   string(alert.Direction),
		Active:      alert.Active,
		CreatedAt:   alert.CreatedAt,
		TriggeredAt: alert.TriggeredAt,
	}
}
