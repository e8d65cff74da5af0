package telegram

import (
	"errors"
	"strconv"
	"strings"
)

const HelpText = `Commands:
/start - register
/help - show this help
/add_alert <SYMBOL> <above|below> <price>
/alerts - list your alerts
/toggle <alert_id> - pause or re-arm an alert
/delete <alert_id>
/price <SYMBOL> [SYMBOL...]
/check <SYMBOL> - evaluate alerts for a symbol now

Notes:
- > and >= work as aliases for above, < and <= for below.
- An alert fires once, then stays paused until you /toggle it back on.
Example:
/add_alert AAPL above 200
/add_alert BTCUSDT below 60000.50
`

// maxPriceSymbols bounds a single /price request.
const maxPriceSymbols = 10

var ErrInvalidArguments = errors.New("invalid arguments")

type AddAlertArgs struct {
	Symbol    string
	Direction string
	Target    string
}

func ParseAddAlertArgs(args string) (AddAlertArgs, error) {
	parts := strings.Fields(args)
	if len(parts) != 3 {
		return AddAlertArgs{}, ErrInvalidArguments
	}
	return AddAlertArgs{Symbol: parts[0], Direction: parts[1], Target: parts[2]}, nil
}

func ParseSymbol(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) != 1 {
		return "", ErrInvalidArguments
	}
	return parts[0], nil
}

// ParseSymbols accepts space or comma separated symbols.
func ParseSymbols(args string) ([]string, error) {
	parts := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(parts) == 0 || len(parts) > maxPriceSymbols {
		return nil, ErrInvalidArguments
	}
	return parts, nil
}

func ParseAlertID(args string) (uint, error) {
	idStr := strings.TrimPrefix(strings.TrimSpace(args), "#")
	if idStr == "" {
		return 0, ErrInvalidArguments
	}
	value, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || value == 0 {
		return 0, ErrInvalidArguments
	}
	return uint(value), nil
}
