package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidDirection = errors.New("invalid direction")

type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

func ParseDirection(input string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "above", ">", ">=":
		return DirectionAbove, nil
	case "below", "<", "<=":
		return DirectionBelow, nil
	default:
		return "", ErrInvalidDirection
	}
}

func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Alert is a one-shot watch on a symbol crossing TargetPrice.
// TriggeredAt != nil implies Active == false.
type Alert struct {
	ID          uint
	UserID      uint
	Symbol      string
	TargetPrice decimal.Decimal
	Direction   Direction
	Active      bool
	CreatedAt   time.Time
	TriggeredAt *time.Time
}

// Evaluation is the per-cycle outcome for one alert.
type Evaluation struct {
	AlertID   uint
	Triggered bool
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
