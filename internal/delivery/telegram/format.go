package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/usecase"
)

const maxMessageLen = 3800

func formatAlert(alert domain.Alert) string {
	status := "paused"
	switch {
	case alert.Active:
		status = "active"
	case alert.TriggeredAt != nil:
		status = "triggered " + alert.TriggeredAt.UTC().Format(time.DateTime)
	}
	return fmt.Sprintf("#%d [%s] %s %s %s", alert.ID, status, alert.Symbol, alert.Direction, alert.TargetPrice.StringFixed(2))
}

func formatAlertList(alerts []domain.Alert) string {
	var builder strings.Builder
	builder.WriteString("Your alerts:\n")
	for i, alert := range alerts {
		line := formatAlert(alert) + "\n"
		if builder.Len()+len(line) > maxMessageLen {
			builder.WriteString(fmt.Sprintf("...and %d more alerts", len(alerts)-i))
			break
		}
		builder.WriteString(line)
	}
	return builder.String()
}

func formatQuotes(quotes map[string]domain.Quote, missing []string) string {
	symbols := make([]string, 0, len(quotes))
	for symbol := range quotes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var builder strings.Builder
	for _, symbol := range symbols {
		quote := quotes[symbol]
		builder.WriteString(fmt.Sprintf("%s: %s (as of %s UTC)\n", symbol, quote.Price.String(), quote.ObservedAt.UTC().Format(time.DateTime)))
	}
	if len(missing) > 0 {
		builder.WriteString("No price for: " + strings.Join(missing, ", "))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func formatCheckReport(symbol string, report usecase.CycleReport) string {
	if report.Active == 0 {
		return fmt.Sprintf("No active alerts for %s.", symbol)
	}
	if report.Resolved == 0 {
		return fmt.Sprintf("No price available for %s right now. %d alert(s) will be retried on the next cycle.", symbol, report.Skipped)
	}
	return fmt.Sprintf("Checked %d alert(s) for %s: %d triggered.", report.Evaluated, symbol, report.Triggered)
}

func formatTrigger(alert domain.Alert, quote domain.Quote) string {
	relation := "at or above"
	if alert.Direction == domain.DirectionBelow {
		relation = "at or below"
	}
	return fmt.Sprintf(
		"Alert #%d triggered: %s is %s %s (price %s).\nUse /toggle %d to re-arm it.",
		alert.ID, alert.Symbol, relation, alert.TargetPrice.StringFixed(2), quote.Price.String(), alert.ID,
	)
}
