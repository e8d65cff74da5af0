// Package redisbus fans triggered alerts out to other services over Redis pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TriggerEvent struct {
	AlertID     uint             `json:"alert_id"`
	UserID      uint             `json:"user_id"`
	Symbol      string           `json:"symbol"`
	TargetPrice decimal.Decimal  `json:"target_price"`
	Direction   domain.Direction `json:"direction"`
	Price       decimal.Decimal  `json:"price"`
	TriggeredAt time.Time        `json:"triggered_at"`
}

func NewTriggerEvent(alert domain.Alert, quote domain.Quote) TriggerEvent {
	triggeredAt := quote.ObservedAt
	if alert.TriggeredAt != nil {
		triggeredAt = *alert.TriggeredAt
	}
	return TriggerEvent{
		AlertID:     alert.ID,
		UserID:      alert.UserID,
		Symbol:      alert.Symbol,
		TargetPrice: alert.TargetPrice,
		Direction:   alert.Direction,
		Price:       quote.Price,
		TriggeredAt: triggeredAt.UTC(),
	}
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type Publisher struct {
	client  publisher
	channel string
	logger  *zap.Logger
}

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewPublisher(client publisher, channel string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, channel: channel, logger: logger}
}

// AlertTriggered publishes one event per committed trigger. Zero receivers is
// not an error.
func (p *Publisher) AlertTriggered(ctx context.Context, alert domain.Alert, quote domain.Quote) error {
	payload, err := json.Marshal(NewTriggerEvent(alert, quote))
	if err != nil {
		return fmt.Errorf("encode trigger event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish trigger event for alert %d: %w", alert.ID, err)
	}
	p.logger.Debug("trigger event published",
		zap.String("channel", p.channel),
		zap.Uint("alert_id", alert.ID),
		zap.Int64("receivers", receivers),
	)
	return nil
}
