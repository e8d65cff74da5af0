package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturePublisher struct {
	channel string
	message []byte
	err     error
}

func (c *capturePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	c.channel = channel
	c.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if c.err != nil {
		cmd.SetErr(c.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func triggered() (domain.Alert, domain.Quote) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	alert := domain.Alert{
		ID:          7,
		UserID:      3,
		Symbol:      "AAPL",
		TargetPrice: decimal.RequireFromString("150.00"),
		Direction:   domain.DirectionAbove,
		TriggeredAt: &at,
	}
	quote := domain.Quote{Symbol: "AAPL", Price: decimal.RequireFromString("151.25"), ObservedAt: at.Add(-time.Second)}
	return alert, quote
}

func TestAlertTriggeredPublishesEvent(t *testing.T) {
	client := &capturePublisher{}
	pub := NewPublisher(client, "alerts", zaptest.NewLogger(t))
	alert, quote := triggered()

	require.NoError(t, pub.AlertTriggered(context.Background(), alert, quote))
	assert.Equal(t, "alerts", client.channel)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(client.message, &payload))
	assert.Equal(t, map[string]any{
		"alert_id":     float64(7),
		"user_id":      float64(3),
		"symbol":       "AAPL",
		"target_price": "150",
		"direction":    "above",
		"price":        "151.25",
		"triggered_at": "2026-03-04T05:06:07Z",
	}, payload)
}

func TestAlertTriggeredWrapsPublishError(t *testing.T) {
	boom := errors.New("connection refused")
	pub := NewPublisher(&capturePublisher{err: boom}, "alerts", zaptest.NewLogger(t))
	alert, quote := triggered()

	err := pub.AlertTriggered(context.Background(), alert, quote)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNewTriggerEventFallsBackToQuoteTime(t *testing.T) {
	alert, quote := triggered()
	alert.TriggeredAt = nil

	event := NewTriggerEvent(alert, quote)
	assert.Equal(t, quote.ObservedAt, event.TriggeredAt)
}
