package db

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type userModel struct {
	ID             uint   `gorm:"primaryKey"`
	TelegramUserID int64  `gorm:"uniqueIndex;not null"`
	Username       string `gorm:""`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (userModel) TableName() string { return "users" }

type alertModel struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      uint            `gorm:"index;not null"`
	Symbol      string          `gorm:"size:20;index:idx_price_alerts_active_symbol,priority:2;not null"`
	TargetPrice decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Direction   string          `gorm:"size:8;not null"`
	Active      bool            `gorm:"index:idx_price_alerts_active_symbol,priority:1;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	TriggeredAt *time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (alertModel) TableName() string { return "price_alerts" }
