package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// PriceSource fetches current prices from an upstream feed. Symbols that
// could not be priced are absent from the result; a total outage yields an
// empty map.
type PriceSource interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) map[string]Quote
}
