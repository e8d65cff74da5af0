package yahoo

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol             string          `json:"symbol"`
	Currency           string          `json:"currency"`
	RegularMarketPrice NullableDecimal `json:"regularMarketPrice"`
	RegularMarketTime  int64           `json:"regularMarketTime"`
}

// NullableDecimal accepts JSON numbers, numeric strings and null.
type NullableDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		n.Valid = false
		return nil
	}
	trimmed := strings.Trim(strings.TrimSpace(string(data)), "\"")
	if trimmed == "" {
		n.Valid = false
		return nil
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		n.Valid = false
		return err
	}
	n.Decimal = dec
	n.Valid = true
	return nil
}
