package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
)

const miniTickerEvent = "24hrMiniTicker"

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type miniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

func streamName(symbol string) string {
	return strings.ToLower(symbol) + "@miniTicker"
}

// decodeTicker returns ok=false for frames that are not mini-ticker events,
// such as subscription acknowledgements.
func decodeTicker(data []byte, receivedAt time.Time) (domain.Quote, bool, error) {
	var msg miniTicker
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Quote{}, false, fmt.Errorf("decode stream message: %w", err)
	}
	if msg.EventType != miniTickerEvent {
		return domain.Quote{}, false, nil
	}
	price, err := decimal.NewFromString(msg.Close)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("decode close price for %s: %w", msg.Symbol, err)
	}
	if !price.IsPositive() {
		return domain.Quote{}, false, fmt.Errorf("non-positive close price for %s", msg.Symbol)
	}

	observed := receivedAt
	if msg.EventTime > 0 {
		observed = time.UnixMilli(msg.EventTime)
	}
	return domain.Quote{
		Symbol:     domain.NormalizeSymbol(msg.Symbol),
		Price:      price,
		ObservedAt: observed.UTC(),
	}, true, nil
}
