package usecase

import (
	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
)

// Evaluate reports whether price has reached target in the given direction.
// Both directions are boundary-inclusive.
func Evaluate(price, target decimal.Decimal, direction domain.Direction) bool {
	cmp := price.Cmp(target)
	switch direction {
	case domain.DirectionAbove:
		return cmp >= 0
	case domain.DirectionBelow:
		return cmp <= 0
	default:
		return false
	}
}
