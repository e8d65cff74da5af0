package usecase

import (
	"context"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
)

// QuoteUsecase answers ad-hoc price lookups through the shared cache so they
// count against the same upstream budget as the monitor.
type QuoteUsecase struct {
	prices    PriceResolver
	freshness time.Duration
}

func NewQuoteUsecase(prices PriceResolver, freshness time.Duration) *QuoteUsecase {
	return &QuoteUsecase{prices: prices, freshness: freshness}
}

// Prices returns quotes for the valid symbols among the input, plus the
// symbols that were rejected or could not be priced.
func (u *QuoteUsecase) Prices(ctx context.Context, symbols []string) (map[string]domain.Quote, []string) {
	var valid, missing []string
	for _, symbol := range symbols {
		normalized, err := ValidateSymbol(symbol)
		if err != nil {
			missing = append(missing, symbol)
			continue
		}
		valid = append(valid, normalized)
	}
	if len(valid) == 0 {
		return map[string]domain.Quote{}, missing
	}

	quotes := u.prices.GetOrFetch(ctx, valid, u.freshness)
	for _, symbol := range valid {
		if _, ok := quotes[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	return quotes, missing
}
